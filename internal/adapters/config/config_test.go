package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "hypewatch", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.Upstream.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 3, cfg.Upstream.MaxRetries)
	assert.Equal(t, 10, cfg.Stream.AlertCapacity)
	assert.Equal(t, 30*time.Second, cfg.Poll.TrendingInterval)
	assert.Equal(t, "5m", cfg.Poll.TrendingWindow)
	assert.Equal(t, 5*time.Minute, cfg.Poll.LeaderboardInterval)
	assert.Equal(t, "alpha_1d", cfg.Poll.LeaderboardMetric)
	assert.Equal(t, 60*time.Second, cfg.Poll.MentionsInterval)
	assert.Equal(t, 10, cfg.Snapshots.MaxSnapshots)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.False(t, cfg.ErrorTracking.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "http://radar.internal:9000")
	t.Setenv("ALERT_BUFFER_CAPACITY", "25")
	t.Setenv("POLL_TRENDING_WINDOW", "24h")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("STREAM_MAX_BACKOFF", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://radar.internal:9000", cfg.Upstream.BaseURL)
	assert.Equal(t, 25, cfg.Stream.AlertCapacity)
	assert.Equal(t, "24h", cfg.Poll.TrendingWindow)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.Equal(t, 2*time.Minute, cfg.Stream.MaxBackoff)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Stream.AlertCapacity = 0
	assert.Error(t, cfg.Validate())

	cfg.Stream.AlertCapacity = 10
	cfg.Poll.TrendingLimit = 0
	assert.Error(t, cfg.Validate())

	cfg.Poll.TrendingLimit = 101
	assert.Error(t, cfg.Validate())

	cfg.Poll.TrendingLimit = 10
	cfg.Snapshots.MaxSnapshots = 0
	assert.Error(t, cfg.Validate())
}
