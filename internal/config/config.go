// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/store"
)

// DefaultEnvFile is read before the environment when present.
const DefaultEnvFile = ".env"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"3000"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`

	// Keys. An empty master key is generated at startup unless a hash is set.
	MasterAPIKey     string `env:"MASTER_API_KEY"`
	MasterAPIKeyHash string `env:"MASTER_API_KEY_HASH"`
	MachineAPIKey    string `env:"MACHINE_API_KEY"`

	// Economy
	CurrencyName      string  `env:"CURRENCY_NAME" envDefault:"EurLind"`
	RegistrationBonus float64 `env:"REGISTRATION_BONUS" envDefault:"100"`

	// Logging. Debug forces the debug level and logs redacted query strings.
	Debug     bool   `env:"DEBUG" envDefault:"false"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Record store
	StoreBackend         string `env:"STORE_BACKEND" envDefault:"file"`
	DataDir              string `env:"DATA_DIR" envDefault:"./database"`
	RedisURL             string `env:"REDIS_URL"`
	RedisDocPrefix       string `env:"REDIS_DOC_PREFIX" envDefault:"meeter:doc:"`
	DatabaseURL          string `env:"DATABASE_URL"`
	PostgresTable        string `env:"POSTGRES_TABLE" envDefault:"documents"`
	StoreSerializeWrites bool   `env:"STORE_SERIALIZE_WRITES" envDefault:"false"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitEnabled      bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitKeyPerMinute int  `env:"RATE_LIMIT_KEY_PER_MINUTE" envDefault:"120"`
	RateLimitKeyBurst     int  `env:"RATE_LIMIT_KEY_BURST" envDefault:"30"`
	RateLimitIPPerSecond  int  `env:"RATE_LIMIT_IP_RPS" envDefault:"10"`
	RateLimitIPBurst      int  `env:"RATE_LIMIT_IP_BURST" envDefault:"20"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Publish deliveries to the Redis stream. Requires REDIS_URL.
	DeliveryStreamEnabled bool `env:"DELIVERY_STREAM_ENABLED" envDefault:"false"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// EffectiveLogLevel returns "debug" when Debug is set, else LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return strings.ToLower(c.LogLevel)
}

// StoreOptions returns the record store selection.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:       c.StoreBackend,
		DataDir:       c.DataDir,
		RedisURL:      c.RedisURL,
		RedisPrefix:   c.RedisDocPrefix,
		DatabaseURL:   c.DatabaseURL,
		PostgresTable: c.PostgresTable,
	}
}

// Validate checks cross-field and backend-specific requirements.
func (c *Config) Validate() error {
	var errs []error

	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT out of range: %d", c.AppPort))
	}
	if c.RegistrationBonus < 0 {
		errs = append(errs, fmt.Errorf("REGISTRATION_BONUS must not be negative"))
	}

	switch c.StoreBackend {
	case store.BackendFile:
		if c.DataDir == "" {
			errs = append(errs, fmt.Errorf("DATA_DIR is required for the file backend"))
		}
	case store.BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, fmt.Errorf("REDIS_URL is required for the redis backend"))
		}
	case store.BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q: %w", c.StoreBackend, store.ErrUnknownBackend))
	}

	if c.RateLimitEnabled {
		if c.RateLimitKeyPerMinute < 0 || c.RateLimitIPPerSecond < 0 {
			errs = append(errs, fmt.Errorf("rate limits must not be negative"))
		}
		if c.RateLimitKeyBurst < 1 || c.RateLimitIPBurst < 1 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_KEY_BURST and RATE_LIMIT_IP_BURST must be at least 1"))
		}
	}

	if c.DeliveryStreamEnabled && c.RedisURL == "" {
		errs = append(errs, fmt.Errorf("DELIVERY_STREAM_ENABLED requires REDIS_URL"))
	}
	if c.MasterAPIKeyHash != "" {
		if err := auth.ValidateHash(c.MasterAPIKeyHash); err != nil {
			errs = append(errs, fmt.Errorf("MASTER_API_KEY_HASH: %w", err))
		}
	}
	if c.MachineAPIKey != "" && c.MachineAPIKey == c.MasterAPIKey {
		errs = append(errs, fmt.Errorf("MACHINE_API_KEY must differ from MASTER_API_KEY"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Load reads ENV_FILE (default .env) when present, then parses and
// validates the environment. Variables already set are never overridden.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	return LoadFile(envFile)
}

// LoadFile is Load with an explicit dotenv path.
// A missing file is ignored.
func LoadFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
