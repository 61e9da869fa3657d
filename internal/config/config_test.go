package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nope"
	cfg.Redis.Addr = ""
	cfg.Postgres.PoolMaxConns = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "pool_max_conns")
}

func TestValidateRequiresFeedURLForIngest(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "ingest"
	cfg.Feed.WsURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed: ws_url")
}

func TestValidateArchiveNeedsS3(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Enabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARGINVIEW_POSTGRES_PASSWORD", "sekret")
	t.Setenv("MARGINVIEW_SERVER_PORT", "9090")
	t.Setenv("MARGINVIEW_MONITOR_INTERVAL", "2m")
	t.Setenv("MARGINVIEW_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "sekret", cfg.Postgres.Password)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Monitor.Interval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestEnvOverridesIgnoreMalformed(t *testing.T) {
	t.Setenv("MARGINVIEW_SERVER_PORT", "not-a-number")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}
