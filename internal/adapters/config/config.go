package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"hypewatch/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	Upstream      UpstreamConfig
	Stream        StreamConfig
	Poll          PollConfig
	Snapshots     SnapshotConfig
	AI            AIConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"hypewatch"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type ServerConfig struct {
	Port int `envconfig:"HTTP_PORT" default:"8080"`
}

// UpstreamConfig locates the metrics service. The base URL is explicit
// configuration: nothing below main reads it from the environment.
type UpstreamConfig struct {
	BaseURL        string        `envconfig:"UPSTREAM_BASE_URL" default:"http://localhost:8000"`
	Timeout        time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	MaxRetries     int           `envconfig:"UPSTREAM_MAX_RETRIES" default:"3"`
	RequestsPerSec float64       `envconfig:"UPSTREAM_REQUESTS_PER_SEC" default:"5"`
	Burst          int           `envconfig:"UPSTREAM_BURST" default:"5"`
}

type StreamConfig struct {
	AlertCapacity int           `envconfig:"ALERT_BUFFER_CAPACITY" default:"10"`
	MinBackoff    time.Duration `envconfig:"STREAM_MIN_BACKOFF" default:"1s"`
	MaxBackoff    time.Duration `envconfig:"STREAM_MAX_BACKOFF" default:"1m"`
}

type PollConfig struct {
	TrendingInterval    time.Duration `envconfig:"POLL_TRENDING_INTERVAL" default:"30s"`
	TrendingWindow      string        `envconfig:"POLL_TRENDING_WINDOW" default:"5m"`
	TrendingLimit       int           `envconfig:"POLL_TRENDING_LIMIT" default:"10"`
	LeaderboardInterval time.Duration `envconfig:"POLL_LEADERBOARD_INTERVAL" default:"5m"`
	LeaderboardMetric   string        `envconfig:"POLL_LEADERBOARD_METRIC" default:"alpha_1d"`
	LeaderboardMinCalls int           `envconfig:"POLL_LEADERBOARD_MIN_CALLS" default:"5"`
	LeaderboardWindow   string        `envconfig:"POLL_LEADERBOARD_WINDOW" default:"30d"`
	MentionsInterval    time.Duration `envconfig:"POLL_MENTIONS_INTERVAL" default:"60s"`
	ImpactInterval      time.Duration `envconfig:"POLL_IMPACT_INTERVAL" default:"5m"`
}

type SnapshotConfig struct {
	DBPath       string `envconfig:"SNAPSHOT_DB_PATH" default:"./data/hypewatch.db"`
	MaxSnapshots int    `envconfig:"SNAPSHOT_MAX_HISTORY" default:"10"`
}

type AIConfig struct {
	OpenAIKey string        `envconfig:"OPENAI_API_KEY"`
	Model     string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	BaseURL   string        `envconfig:"OPENAI_BASE_URL"`
	Timeout   time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables.
// It first tries to load a .env file (useful for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}

// Validate checks the values that cannot be expressed as envconfig tags.
func (c *Config) Validate() error {
	if c.Stream.AlertCapacity < 1 {
		return errors.Wrap(errors.ErrInvalidInput, "ALERT_BUFFER_CAPACITY must be at least 1")
	}
	if c.Snapshots.MaxSnapshots < 1 {
		return errors.Wrap(errors.ErrInvalidInput, "SNAPSHOT_MAX_HISTORY must be at least 1")
	}
	if c.Poll.TrendingLimit < 1 || c.Poll.TrendingLimit > 100 {
		return errors.Wrap(errors.ErrInvalidInput, "POLL_TRENDING_LIMIT must be between 1 and 100")
	}
	return nil
}
