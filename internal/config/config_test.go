package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, 5, cfg.SignupMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.SignupTxTimeout)
	assert.Equal(t, 30, cfg.RateLimitSignupPerMin)
	assert.True(t, cfg.MigrateOnStart)
	assert.Empty(t, cfg.AdminToken)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SIGNUP_MAX_ATTEMPTS", "8")
	t.Setenv("SIGNUP_TX_TIMEOUT", "750ms")
	t.Setenv("ADMIN_TOKEN", "s3cret")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("OUTBOX_BATCH_SIZE", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.SignupTxTimeout)
	assert.Equal(t, "s3cret", cfg.AdminToken)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 5, cfg.OutboxBatchSize)

	p := cfg.RetryPolicy()
	assert.Equal(t, 8, p.MaxAttempts)
	assert.Positive(t, p.BaseDelay)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"unknown backend", "STORE_BACKEND", "firestore", "STORE_BACKEND"},
		{"zero attempts", "SIGNUP_MAX_ATTEMPTS", "0", "SIGNUP_MAX_ATTEMPTS"},
		{"negative timeout", "SIGNUP_TX_TIMEOUT", "-1s", "SIGNUP_TX_TIMEOUT"},
		{"unparsable timeout", "SIGNUP_TX_TIMEOUT", "soon", "SIGNUP_TX_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: "5433", DBUser: "sauna", DBPassword: "p@ss word",
		DBName: "signups", DBSSLMode: "require",
	}
	assert.Equal(t, "postgres://sauna:p%40ss%20word@db:5433/signups?sslmode=require", cfg.DatabaseURL())
}
