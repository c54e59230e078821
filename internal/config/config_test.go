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

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "api.frankfurter.dev", cfg.Upstream.Host)
	assert.Equal(t, "v1", cfg.Upstream.Version)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 10, cfg.Quota.InitialCredits)
	assert.Equal(t, 10, cfg.Quota.RateLimit)
	assert.Equal(t, time.Minute, cfg.Quota.RateWindow)
	assert.Equal(t, LedgerBackendMemory, cfg.Ledger.Backend)
	assert.Empty(t, cfg.NATS.UsageConsumer)
	assert.Equal(t, "https://api.frankfurter.dev/v1", cfg.Upstream.BaseURL())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("QUOTA_RATE_LIMIT", "25")
	t.Setenv("QUOTA_RATE_WINDOW", "30s")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("NATS_USAGE_CONSUMER", "billing")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Quota.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Quota.RateWindow)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "billing", cfg.NATS.UsageConsumer)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.timeout")
}
