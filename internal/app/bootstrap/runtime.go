package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	cacheadapter "github.com/viralforge/account-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/account-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/account-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/account-service/internal/adapters/http"
	"github.com/viralforge/account-service/internal/adapters/mail"
	"github.com/viralforge/account-service/internal/adapters/memory"
	"github.com/viralforge/account-service/internal/adapters/metrics"
	"github.com/viralforge/account-service/internal/adapters/postgres"
	"github.com/viralforge/account-service/internal/adapters/security"
	"github.com/viralforge/account-service/internal/application"
	"github.com/viralforge/account-service/internal/domain"
	"github.com/viralforge/account-service/internal/ports"
)

// Runtime owns every long-lived component of a process and its shutdown order.
type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	mailer     *mail.Dispatcher
	outbox     *eventadapter.OutboxWorker
	cleanups   []func()
}

type storage struct {
	users   ports.UserRepository
	outbox  ports.OutboxRepository
	checks  map[string]httpadapter.ReadinessCheck
	cleanup func()
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	metrics.Init()
	logger.Info("bootstrapping account service",
		"service_id", cfg.ServiceID,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"storage_driver", cfg.StorageDriver,
		"mail_transport", cfg.Mail.Transport,
	)

	rt := &Runtime{cfg: cfg, logger: logger}
	if err := rt.build(ctx); err != nil {
		rt.cleanup()
		return nil, err
	}
	return rt, nil
}

func (r *Runtime) build(ctx context.Context) error {
	cfg := r.cfg

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	r.cleanups = append(r.cleanups, store.cleanup)

	var lockouts ports.LockoutStore = memory.NewLockoutStore()
	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		r.cleanups = append(r.cleanups, func() { _ = redisClient.Close() })
		store.checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		lockouts = cacheadapter.NewRedisLockoutStore(redisClient)
	} else {
		r.logger.Warn("REDIS_URL not set; login lockouts are kept in process memory")
	}

	tokenSigner, err := newTokenSigner(cfg, r.logger)
	if err != nil {
		return err
	}

	transport, err := newMailTransport(cfg.Mail, r.logger)
	if err != nil {
		return err
	}
	renderer, err := mail.NewRenderer(cfg.Mail.BaseURL)
	if err != nil {
		return err
	}
	r.mailer = mail.NewDispatcher(r.logger, renderer, transport, mail.DispatcherConfig{
		QueueSize:   cfg.Mail.QueueSize,
		Workers:     cfg.Mail.Workers,
		SendTimeout: cfg.Mail.SendTimeout,
	})

	publisher, err := r.newPublisher()
	if err != nil {
		return err
	}
	r.outbox = eventadapter.NewOutboxWorker(r.logger, store.outbox, publisher, eventadapter.OutboxWorkerConfig{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		ClaimTTL:   cfg.OutboxClaimTTL,
		MaxRetries: cfg.OutboxMaxRetries,
	})

	r.service = application.NewService(application.Dependencies{
		Config: application.Config{
			PasswordPolicy: domain.PasswordPolicy{
				MinLength: cfg.PasswordMinLength,
				MaxLength: cfg.PasswordMaxLength,
			},
			ResetKeyTTL:             cfg.ResetKeyTTL,
			RegistrationIPThreshold: cfg.RegistrationIPThreshold,
			RegistrationWindow:      cfg.RegistrationWindow,
			DefaultAuthority:        cfg.DefaultAuthority,
			TokenTTL:                cfg.TokenTTL,
			RememberMeTokenTTL:      cfg.RememberMeTokenTTL,
			FailedLoginThreshold:    cfg.FailedThreshold,
			LockoutDuration:         cfg.LockoutDuration,
		},
		Users:       store.users,
		Lockouts:    lockouts,
		Notifier:    r.mailer,
		Hasher:      security.NewBcryptHasher(cfg.BcryptCost),
		TokenSigner: tokenSigner,
	})

	handler := httpadapter.NewHandler(r.service, store.checks)
	r.httpServer = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: httpadapter.NewRouter(handler, httpadapter.RouterConfig{
			AllowedOrigins: cfg.CORSOrigins,
			RequestTimeout: cfg.RequestTimeout,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.grpcServer, _ = grpcadapter.NewServer(grpcadapter.NewAccountInternalServer(r.service))
	return nil
}

func openStorage(ctx context.Context, cfg Config) (storage, error) {
	if cfg.StorageDriver == StorageDriverMemory {
		outbox := memory.NewOutboxRepository()
		return storage{
			users:   memory.NewUserRepository(outbox),
			outbox:  outbox,
			checks:  map[string]httpadapter.ReadinessCheck{},
			cleanup: func() {},
		}, nil
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return storage{}, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return storage{}, fmt.Errorf("gorm sql db: %w", err)
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return storage{}, fmt.Errorf("run migrations: %w", err)
	}
	repos := postgres.NewRepositories(db)
	return storage{
		users:  repos.Users,
		outbox: repos.Outbox,
		checks: map[string]httpadapter.ReadinessCheck{
			"postgres": sqlDB.PingContext,
		},
		cleanup: func() { _ = sqlDB.Close() },
	}, nil
}

func newTokenSigner(cfg Config, logger *slog.Logger) (*security.JWTSigner, error) {
	signer, err := security.NewJWTSigner(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err == nil {
		return signer, nil
	}
	if !cfg.AllowEphemeralJWT {
		return nil, fmt.Errorf("init jwt signer: %w", err)
	}
	logger.Warn("using ephemeral JWT keys for local/dev runtime")
	signer, err = security.NewEphemeralJWTSigner(cfg.JWTKeyID)
	if err != nil {
		return nil, fmt.Errorf("init ephemeral jwt signer: %w", err)
	}
	return signer, nil
}

func newMailTransport(cfg MailConfig, logger *slog.Logger) (mail.Transport, error) {
	switch cfg.Transport {
	case MailTransportSMTP:
		return mail.NewSMTPTransport(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.FromAddress,
		})
	case MailTransportBrevo:
		return mail.NewBrevoTransport(mail.BrevoConfig{
			APIKey:          cfg.BrevoAPIKey,
			FromEmail:       cfg.FromAddress,
			FromName:        cfg.FromName,
			RetryMaxElapsed: cfg.RetryMaxElapsed,
		}, logger)
	default:
		return mail.NewLoggingTransport(logger), nil
	}
}

func (r *Runtime) newPublisher() (ports.EventPublisher, error) {
	if len(r.cfg.KafkaBrokers) == 0 {
		return eventadapter.NewLoggingPublisher(r.logger), nil
	}
	publisher, err := eventadapter.NewKafkaPublisher(r.cfg.KafkaBrokers, r.cfg.KafkaTopic, r.cfg.KafkaTopicByEvent)
	if err != nil {
		return nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	r.cleanups = append(r.cleanups, func() { _ = publisher.Close() })
	return publisher, nil
}

// RunAPI serves HTTP and gRPC until a signal arrives. With the memory storage driver the
// outbox relay runs in-process, since no separate worker can see the data.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanup()
		return fmt.Errorf("listen gRPC: %w", err)
	}
	r.grpcLis = lis

	if err := r.mailer.Start(ctx); err != nil {
		r.cleanup()
		return fmt.Errorf("start mail dispatcher: %w", err)
	}

	errCh := make(chan error, 3)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	if r.cfg.StorageDriver == StorageDriverMemory {
		go func() {
			if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("outbox worker: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("http shutdown incomplete", "error", err)
	}
	r.grpcServer.GracefulStop()
	if err := r.mailer.Close(shutdownCtx); err != nil {
		r.logger.Warn("mail queue not fully drained", "error", err)
	}
	r.cleanup()
	return runErr
}

// RunWorker relays the outbox until a signal arrives.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanup()

	if r.cfg.StorageDriver == StorageDriverMemory {
		return errors.New("outbox worker needs the postgres storage driver")
	}
	r.logger.Info("outbox worker started")
	if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Runtime) cleanup() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
	r.cleanups = nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
