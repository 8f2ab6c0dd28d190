package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/viralforge/account-service/internal/adapters/metrics"
	"github.com/viralforge/account-service/internal/application"
)

// ReadinessCheck reports whether a backing dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handler is the HTTP adapter entrypoint for account use-cases.
type Handler struct {
	service *application.Service
	checks  map[string]ReadinessCheck
}

func NewHandler(service *application.Service, checks map[string]ReadinessCheck) *Handler {
	if checks == nil {
		checks = map[string]ReadinessCheck{}
	}
	return &Handler{service: service, checks: checks}
}

// RouterConfig holds the transport-level knobs of the router.
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter registers the account API under /api together with the operational endpoints.
func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Authorization", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", handler.registerAccount)
		r.Get("/activate", handler.activateAccount)
		r.Post("/authenticate", handler.authenticate)
		r.With(handler.optionalAuthMiddleware).Get("/authenticate", handler.isAuthenticated)
		r.Post("/account/reset_password/init", handler.requestPasswordReset)
		r.Post("/account/reset_password/finish", handler.finishPasswordReset)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/account", handler.getAccount)
			r.Post("/account", handler.saveAccount)
			r.Post("/account/change_password", handler.changePassword)
		})
	})

	return r
}
