// Package main is the entrypoint for the Meeter API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/cache"
	"github.com/meeter/meeter/internal/config"
	"github.com/meeter/meeter/internal/events"
	"github.com/meeter/meeter/internal/handler"
	"github.com/meeter/meeter/internal/metrics"
	"github.com/meeter/meeter/internal/middleware"
	"github.com/meeter/meeter/internal/repository"
	"github.com/meeter/meeter/internal/server"
	"github.com/meeter/meeter/internal/service"
	"github.com/meeter/meeter/internal/store"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Redis is optional; it backs the redis store, rate limits and the delivery stream.
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cache.DefaultPoolOptions())
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		logger.Info("connected to Redis")
	}

	st, shared, err := openStore(ctx, cfg, cacheClient)
	if err != nil {
		logger.Error(
			"failed to open store",
			slog.String("backend", cfg.StoreBackend),
			slog.String("error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL)),
		)
		os.Exit(1)
	}
	if err := st.Bootstrap(ctx); err != nil {
		logger.Error("failed to bootstrap store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	logger.Info("store ready", "backend", cfg.StoreBackend, "serialize_writes", cfg.StoreSerializeWrites)

	repo := repository.New(st, store.NewLocker(cfg.StoreSerializeWrites))

	// Resolve the master key once; it is passed to the gates explicitly.
	masterKey := cfg.MasterAPIKey
	if cfg.MasterAPIKeyHash == "" {
		var generated bool
		masterKey, generated, err = auth.ResolveMasterKey(cfg.MasterAPIKey)
		if err != nil {
			logger.Error("failed to generate master key", "error", err)
			os.Exit(1)
		}
		if generated {
			logger.Warn("MASTER_API_KEY not set, generated one for this process",
				"master_key", auth.MaskKey(masterKey),
			)
		}
	}

	// The hash check is the expensive one, so it runs last.
	master := auth.NewMasterKey(masterKey)
	masterHash := auth.NewMasterKeyHash(cfg.MasterAPIKeyHash)
	users := auth.NewUserKey(repo)
	gate := auth.NewGate(master, users, masterHash)
	deliveryGate := auth.NewGate(master, auth.NewMachineKey(cfg.MachineAPIKey), users, masterHash)
	if cfg.MachineAPIKey == "" {
		logger.Warn("MACHINE_API_KEY not set, machine deliveries disabled")
	}

	recorder := metrics.NewPrometheus()

	opts := service.Options{
		RegistrationBonus: cfg.RegistrationBonus,
		Metrics:           recorder,
	}
	if cfg.DeliveryStreamEnabled && cacheClient != nil {
		publisher := events.NewPublisher(cacheClient.Client(), events.StreamKey, logger, recorder)
		opts.Publisher = publisher
		logger.Info("delivery stream enabled", "stream", publisher.Stream())
	}
	ledger := service.NewLedger(repo, opts)

	limits := middleware.RateLimits{
		KeyPerMinute: cfg.RateLimitKeyPerMinute,
		KeyBurst:     cfg.RateLimitKeyBurst,
		IPPerSecond:  cfg.RateLimitIPPerSecond,
		IPBurst:      cfg.RateLimitIPBurst,
	}
	var limiter middleware.Limiter
	if cacheClient != nil {
		limiter = middleware.NewRedisLimiter(cacheClient, limits)
	} else {
		limiter = middleware.NewLocalLimiter(limits)
	}

	// The cache checker must stay an untyped nil when Redis is off.
	var cacheCheck handler.HealthChecker
	if cacheClient != nil {
		cacheCheck = cacheClient
	}

	r := handler.NewRouter(handler.RouterConfig{
		Logger:           logger,
		Ledger:           ledger,
		Health:           handler.NewHealthHandler(cfg.StoreBackend, st, cacheCheck),
		Gate:             gate,
		DeliveryGate:     deliveryGate,
		Metrics:          recorder,
		MetricsHandler:   recorder.Handler(),
		Limiter:          limiter,
		RateLimitEnabled: cfg.RateLimitEnabled,
		KeyPerMinute:     cfg.RateLimitKeyPerMinute,
		Currency:         cfg.CurrencyName,
		LogQuery:         cfg.Debug,
		IsDevelopment:    cfg.IsDevelopment(),
		MaxRequestBody:   cfg.MaxRequestBodySize,
	})

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// A store sharing the cache client is closed with the cache.
	if !shared {
		srv.OnShutdown("store", func(ctx context.Context) error { return st.Close() })
	}
	if cacheClient != nil {
		srv.OnShutdown("cache", func(ctx context.Context) error { return cacheClient.Close() })
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"currency", cfg.CurrencyName,
		"registration_bonus", ledger.RegistrationBonus(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore opens the configured backend. The redis backend reuses the
// cache connection when one exists, reported by shared.
func openStore(ctx context.Context, cfg *config.Config, cacheClient *cache.Cache) (st store.Store, shared bool, err error) {
	if cfg.StoreBackend == store.BackendRedis && cacheClient != nil {
		return store.NewRedisStoreFromClient(cacheClient.Client(), cfg.RedisDocPrefix), true, nil
	}
	st, err = store.New(ctx, cfg.StoreOptions())
	return st, false, err
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.EffectiveLogLevel()),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
