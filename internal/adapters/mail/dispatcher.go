package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/viralforge/account-service/internal/adapters/metrics"
	"github.com/viralforge/account-service/internal/domain"
)

// ErrDispatcherClosed is returned by Start after Close.
var ErrDispatcherClosed = errors.New("mail dispatcher closed")

// DispatcherConfig sizes the queue and worker pool.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

type job struct {
	kind     Kind
	user     domain.User
	queuedAt time.Time
}

// Dispatcher is the background account mailer. Enqueueing never blocks: when the
// queue is full the message is dropped and counted.
type Dispatcher struct {
	logger    *slog.Logger
	renderer  *Renderer
	transport Transport
	cfg       DispatcherConfig

	mu      sync.RWMutex
	closed  bool
	started bool
	queue   chan job
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewDispatcher(logger *slog.Logger, renderer *Renderer, transport Transport, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:    logger,
		renderer:  renderer,
		transport: transport,
		cfg:       cfg,
		queue:     make(chan job, cfg.QueueSize),
	}
}

// Start launches the worker pool. The workers stop once Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if d.started {
		return nil
	}
	d.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work(runCtx)
	}
	return nil
}

// Close stops intake and waits for queued mail to go out. If ctx expires first the
// in-flight sends are cancelled and ctx.Err() is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) SendActivationEmail(ctx context.Context, user domain.User) {
	d.enqueue(ctx, KindActivation, user)
}

func (d *Dispatcher) SendPasswordResetMail(ctx context.Context, user domain.User) {
	d.enqueue(ctx, KindPasswordReset, user)
}

func (d *Dispatcher) enqueue(ctx context.Context, kind Kind, user domain.User) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ctx, kind, user, "dispatcher_closed")
		return
	}
	select {
	case d.queue <- job{kind: kind, user: user, queuedAt: time.Now()}:
		metrics.MailQueueDepth.Set(float64(len(d.queue)))
	default:
		d.drop(ctx, kind, user, "queue_full")
	}
}

func (d *Dispatcher) drop(ctx context.Context, kind Kind, user domain.User, reason string) {
	metrics.MailsSent.WithLabelValues(string(kind), "dropped").Inc()
	d.logger.WarnContext(ctx, "mail dropped",
		"module", "mail.dispatcher",
		"layer", "adapter",
		"operation", "enqueue_mail",
		"outcome", "failure",
		"template", string(kind),
		"login", user.Login,
		"reason", reason,
	)
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for j := range d.queue {
		metrics.MailQueueDepth.Set(float64(len(d.queue)))
		d.deliver(ctx, j)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	msg, err := d.renderer.Render(j.kind, j.user)
	if err != nil {
		metrics.MailsSent.WithLabelValues(string(j.kind), "render_failed").Inc()
		d.logger.ErrorContext(ctx, "mail render failed",
			"module", "mail.dispatcher",
			"layer", "adapter",
			"operation", "render_mail",
			"outcome", "failure",
			"template", string(j.kind),
			"login", j.user.Login,
			"error", err,
		)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	if err := d.transport.Send(sendCtx, msg); err != nil {
		metrics.MailsSent.WithLabelValues(string(j.kind), "failed").Inc()
		d.logger.WarnContext(ctx, "mail could not be sent",
			"module", "mail.dispatcher",
			"layer", "adapter",
			"operation", "send_mail",
			"outcome", "failure",
			"template", string(j.kind),
			"login", j.user.Login,
			"error", err,
		)
		return
	}
	metrics.MailsSent.WithLabelValues(string(j.kind), "sent").Inc()
	d.logger.DebugContext(ctx, "mail delivered",
		"module", "mail.dispatcher",
		"layer", "adapter",
		"operation", "send_mail",
		"outcome", "success",
		"template", string(j.kind),
		"login", j.user.Login,
		"queued_for", time.Since(j.queuedAt).String(),
	)
}
