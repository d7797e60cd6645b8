// Package config provides environment configuration management.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/retry"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all environment configuration for the service.
type Config struct {
	Port      string `env:"PORT"       envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	StoreBackend   string `env:"STORE_BACKEND"    envDefault:"postgres"`
	DBHost         string `env:"DB_HOST"          envDefault:"localhost"`
	DBPort         string `env:"DB_PORT"          envDefault:"5432"`
	DBUser         string `env:"DB_USER"          envDefault:"postgres"`
	DBPassword     string `env:"DB_PASSWORD"      envDefault:"postgres"`
	DBName         string `env:"DB_NAME"          envDefault:"sauna"`
	DBSSLMode      string `env:"DB_SSLMODE"       envDefault:"disable"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS"     envDefault:"20"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	// An empty AdminToken disables the admin routes.
	AdminToken        string `env:"ADMIN_TOKEN"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`

	SignupMaxAttempts     int           `env:"SIGNUP_MAX_ATTEMPTS"       envDefault:"5"`
	SignupTxTimeout       time.Duration `env:"SIGNUP_TX_TIMEOUT"         envDefault:"5s"`
	RateLimitSignupPerMin int           `env:"RATE_LIMIT_SIGNUP_PER_MIN" envDefault:"30"`

	// An empty RedisAddr disables the outbox publisher.
	RedisAddr          string        `env:"REDIS_ADDR"`
	OutboxStream       string        `env:"OUTBOX_STREAM"        envDefault:"sauna:signups"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"5s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"    envDefault:"50"`
}

// Load parses environment variables into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every setting that cannot work.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend))
	}
	if c.SignupMaxAttempts <= 0 {
		errs = append(errs, errors.New("SIGNUP_MAX_ATTEMPTS must be positive"))
	}
	if c.SignupTxTimeout <= 0 {
		errs = append(errs, errors.New("SIGNUP_TX_TIMEOUT must be positive"))
	}
	if c.RateLimitSignupPerMin < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_SIGNUP_PER_MIN must not be negative"))
	}
	if c.DBMaxConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be positive"))
	}
	if c.RedisAddr != "" {
		if c.OutboxPollInterval <= 0 {
			errs = append(errs, errors.New("OUTBOX_POLL_INTERVAL must be positive"))
		}
		if c.OutboxBatchSize <= 0 {
			errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
		}
	}
	return errors.Join(errs...)
}

// DatabaseURL builds a postgres:// URL usable by both pgx and migrate.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// RetryPolicy returns the retry policy for signup transactions.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.SignupMaxAttempts
	return p
}
