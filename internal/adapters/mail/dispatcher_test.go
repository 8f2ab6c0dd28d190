package mail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/account-service/internal/domain"
)

type captureTransport struct {
	mu      sync.Mutex
	sent    []Message
	failN   int
	gate    chan struct{}
	started chan struct{}
}

func (t *captureTransport) Send(ctx context.Context, msg Message) error {
	if t.started != nil {
		t.started <- struct{}{}
	}
	if t.gate != nil {
		select {
		case <-t.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failN > 0 {
		t.failN--
		return errors.New("relay refused")
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *captureTransport) messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testUser() domain.User {
	return domain.User{
		Login:         "roger",
		Email:         "roger@x.com",
		FirstName:     "Roger",
		LangKey:       "en",
		ActivationKey: "abc123",
		ResetKey:      "def456",
	}
}

func newTestDispatcher(t *testing.T, transport Transport, cfg DispatcherConfig) *Dispatcher {
	t.Helper()
	renderer, err := NewRenderer("http://localhost:8080")
	require.NoError(t, err)
	return NewDispatcher(quietLogger(), renderer, transport, cfg)
}

func TestDispatcherDeliversAllKinds(t *testing.T) {
	transport := &captureTransport{}
	d := newTestDispatcher(t, transport, DispatcherConfig{Workers: 1})
	require.NoError(t, d.Start(context.Background()))

	ctx := context.Background()
	d.SendActivationEmail(ctx, testUser())
	d.SendPasswordResetMail(ctx, testUser())
	require.NoError(t, d.Close(ctx))

	sent := transport.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, KindActivation, sent[0].Kind)
	assert.Equal(t, "roger@x.com", sent[0].To)
	assert.Contains(t, sent[0].HTML, "http://localhost:8080/#/activate?key=abc123")
	assert.Equal(t, KindPasswordReset, sent[1].Kind)
	assert.Contains(t, sent[1].HTML, "/#/reset/finish?key=def456")
}

func TestDispatcherSendFailureIsSwallowed(t *testing.T) {
	transport := &captureTransport{failN: 1}
	d := newTestDispatcher(t, transport, DispatcherConfig{Workers: 1})
	require.NoError(t, d.Start(context.Background()))

	d.SendActivationEmail(context.Background(), testUser())
	d.SendPasswordResetMail(context.Background(), testUser())
	require.NoError(t, d.Close(context.Background()))

	sent := transport.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, KindPasswordReset, sent[0].Kind)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	transport := &captureTransport{gate: make(chan struct{}), started: make(chan struct{}, 4)}
	d := newTestDispatcher(t, transport, DispatcherConfig{Workers: 1, QueueSize: 1})
	require.NoError(t, d.Start(context.Background()))

	ctx := context.Background()
	d.SendActivationEmail(ctx, testUser())
	<-transport.started

	returned := make(chan struct{})
	go func() {
		d.SendActivationEmail(ctx, testUser()) // fills the queue
		d.SendActivationEmail(ctx, testUser()) // dropped
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	close(transport.gate)
	require.NoError(t, d.Close(ctx))
	assert.Len(t, transport.messages(), 2)
}

func TestDispatcherCloseHonoursDeadline(t *testing.T) {
	transport := &captureTransport{gate: make(chan struct{}), started: make(chan struct{}, 4)}
	d := newTestDispatcher(t, transport, DispatcherConfig{Workers: 1})
	require.NoError(t, d.Start(context.Background()))

	d.SendActivationEmail(context.Background(), testUser())
	<-transport.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, transport.messages())

	// Intake is shut after Close.
	d.SendActivationEmail(context.Background(), testUser())
	assert.ErrorIs(t, d.Start(context.Background()), ErrDispatcherClosed)
}

func TestRendererFallsBackToLoginAndDefaultLang(t *testing.T) {
	renderer, err := NewRenderer("https://accounts.example.com/")
	require.NoError(t, err)

	msg, err := renderer.Render(KindActivation, domain.User{Login: "jane", Email: "jane@example.com", ActivationKey: "k&1"})
	require.NoError(t, err)
	assert.Equal(t, "Account activation", msg.Subject)
	assert.Contains(t, msg.HTML, "Dear jane,")
	assert.Contains(t, msg.HTML, `lang="en"`)
	assert.Contains(t, msg.HTML, "https://accounts.example.com/#/activate?key=k%261")

	_, err = renderer.Render(KindActivation, domain.User{Login: "nomail"})
	assert.Error(t, err)

	_, err = renderer.Render(Kind("unknown"), testUser())
	assert.Error(t, err)
}
