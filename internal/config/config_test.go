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

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, 24*time.Hour, cfg.Tasks.Retention)
	assert.Equal(t, 30*time.Second, cfg.Stats.Interval)
	assert.Empty(t, cfg.Alerts.WebhookURLs)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DISASTERAI_SERVER_PORT", "9090")
	t.Setenv("DISASTERAI_REDIS_ADDR", "redis:6380")
	t.Setenv("DISASTERAI_STATS_INTERVAL", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 10*time.Second, cfg.Stats.Interval)
}
