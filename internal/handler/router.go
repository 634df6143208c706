package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/metrics"
	"github.com/meeter/meeter/internal/middleware"
	"github.com/meeter/meeter/internal/service"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Logger *slog.Logger
	Ledger *service.Ledger
	Health *HealthHandler

	// Gate admits the master and user keys.
	Gate *auth.Gate
	// DeliveryGate additionally admits the machine key.
	DeliveryGate *auth.Gate

	Metrics        metrics.Recorder
	MetricsHandler http.Handler

	Limiter          middleware.Limiter
	RateLimitEnabled bool
	KeyPerMinute     int

	Currency       string
	LogQuery       bool
	IsDevelopment  bool
	MaxRequestBody int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	h := New(cfg.Currency)
	accounts := NewAccountHandler(cfg.Ledger, cfg.Logger)
	ledger := NewLedgerHandler(cfg.Ledger, cfg.Logger)
	stats := NewStatsHandler(cfg.Ledger, cfg.Logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger, cfg.LogQuery))
	r.Use(middleware.Recoverer(cfg.Logger, cfg.IsDevelopment))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBody))

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:       cfg.Logger,
		Limiter:      cfg.Limiter,
		Enabled:      cfg.RateLimitEnabled,
		KeyPerMinute: cfg.KeyPerMinute,
	}

	// Probes and exposition
	r.Get("/", h.Status)
	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Healthz)
		r.Get("/readyz", cfg.Health.Readyz)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// Public routes; the avatar+key checks happen in the ledger.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))

		r.Get("/register", accounts.RegisterQuery)
		r.Get("/save", stats.Save)
		r.Post("/api/register", accounts.Register)
		r.Post("/api/v1/machine/interact", ledger.Interact)
	})

	// Gated routes. The IP limit runs first so unknown keys are throttled too.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Use(middleware.Auth(middleware.AuthConfig{
			Logger:  cfg.Logger,
			Gate:    cfg.Gate,
			Metrics: cfg.Metrics,
		}))
		r.Use(middleware.RateLimitKey(rateLimitCfg))

		r.Post("/api/spend", ledger.Spend)
		r.Get("/api/balance", accounts.Balance)
		r.Get("/api/user", accounts.User)
		r.Get("/api/stats", stats.Get)
	})

	deliveryGate := cfg.DeliveryGate
	if deliveryGate == nil {
		deliveryGate = cfg.Gate
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Use(middleware.Auth(middleware.AuthConfig{
			Logger:  cfg.Logger,
			Gate:    deliveryGate,
			Metrics: cfg.Metrics,
		}))
		r.Use(middleware.RateLimitKey(rateLimitCfg))

		r.Post("/api/deliver", ledger.Deliver)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
