package config

import "time"

// Config holds runtime configuration for the stock bot.
// It is built once at startup and passed by value to the components that need it.
type Config struct {
	AppEnv     string           `mapstructure:"app_env"`
	Bot        BotConfig        `mapstructure:"bot"`
	Server     ServerConfig     `mapstructure:"server"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Listing    ListingConfig    `mapstructure:"listing"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts"`
	State      StateConfig      `mapstructure:"state"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token         string        `mapstructure:"token" validate:"required"`
	Mode          string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	WebhookURL    string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	WebhookPath   string        `mapstructure:"webhook_path" validate:"required,startswith=/"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	PollTimeout   time.Duration `mapstructure:"poll_timeout" validate:"gt=0"`
	DedupTTL      time.Duration `mapstructure:"dedup_ttl" validate:"gte=0"`
	Language      string        `mapstructure:"language" validate:"required"`
}

// ServerConfig configures the inbound HTTP endpoint.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LoggerConfig configures slog output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

// RedisConfig configures the optional Redis backend.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	PoolSize int    `mapstructure:"pool_size" validate:"gte=0"`
}

// ListingConfig configures the MTF listing source.
type ListingConfig struct {
	BaseURL  string        `mapstructure:"base_url" validate:"required,url"`
	PageSize int           `mapstructure:"page_size" validate:"gt=0"`
	MaxPages int           `mapstructure:"max_pages" validate:"gt=0"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// MarketDataConfig configures the historical price source.
type MarketDataConfig struct {
	BaseURL       string        `mapstructure:"base_url" validate:"required,url"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	DefaultSymbol string        `mapstructure:"default_symbol" validate:"required"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// JobsConfig configures how long-running work is offloaded.
type JobsConfig struct {
	Backend     string        `mapstructure:"backend" validate:"oneof=local asynq"`
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`
	QueueSize   int           `mapstructure:"queue_size" validate:"gt=0"`
	TaskTimeout time.Duration `mapstructure:"task_timeout" validate:"gt=0"`
}

// ArtifactsConfig configures the scratch directory for generated files.
type ArtifactsConfig struct {
	Dir       string        `mapstructure:"dir"`
	MaxAge    time.Duration `mapstructure:"max_age" validate:"gt=0"`
	SweepCron string        `mapstructure:"sweep_cron" validate:"required"`
}

// StateConfig configures menu state retention.
type StateConfig struct {
	TTL             time.Duration `mapstructure:"ttl" validate:"gt=0"`
	StaleAfter      time.Duration `mapstructure:"stale_after" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
}

// RateLimitConfig configures per-user rate limiting.
type RateLimitConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	PerUser   RateLimitRule  `mapstructure:"per_user"`
	Commands  CommandsConfig `mapstructure:"commands"`
	Whitelist []int64        `mapstructure:"whitelist"`
}

// RateLimitRule describes a single limit over a window such as "1m".
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit" validate:"gte=0"`
	Window string `mapstructure:"window"`
}

// CommandsConfig holds stricter limits for expensive actions.
type CommandsConfig struct {
	Chart    RateLimitRule `mapstructure:"chart"`
	Download RateLimitRule `mapstructure:"download"`
}
