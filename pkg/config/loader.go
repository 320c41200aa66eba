// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingToken is returned when no bot credential is configured.
var ErrMissingToken = errors.New("bot token is not configured (set BOT_TOKEN)")

var defaults = map[string]any{
	"app_env": "development",

	"bot.token":          "",
	"bot.mode":           "polling",
	"bot.webhook_url":    "",
	"bot.webhook_path":   "/webhook",
	"bot.webhook_secret": "",
	"bot.poll_timeout":   10 * time.Second,
	"bot.dedup_ttl":      10 * time.Minute,
	"bot.language":       "en",

	"server.port":             "8080",
	"server.shutdown_timeout": 15 * time.Second,

	"logger.level":        "info",
	"logger.format":       "json",
	"logger.file":         "",
	"logger.max_size_mb":  50,
	"logger.max_backups":  5,
	"logger.max_age_days": 14,

	"sentry.enabled": false,
	"sentry.dsn":     "",

	"redis.enabled":   false,
	"redis.addr":      "localhost:6379",
	"redis.password":  "",
	"redis.db":        0,
	"redis.pool_size": 10,

	"listing.base_url":  "https://groww.in/v1/api/mtf/approved_mtf_stocks",
	"listing.page_size": 50,
	"listing.max_pages": 1000,
	"listing.timeout":   15 * time.Second,

	"market_data.base_url":       "https://query1.finance.yahoo.com",
	"market_data.timeout":        15 * time.Second,
	"market_data.default_symbol": "RELIANCE.NS",
	"market_data.user_agent":     "Mozilla/5.0",

	"jobs.backend":      "local",
	"jobs.concurrency":  4,
	"jobs.queue_size":   64,
	"jobs.task_timeout": 5 * time.Minute,

	"artifacts.dir":        "",
	"artifacts.max_age":    time.Hour,
	"artifacts.sweep_cron": "@every 15m",

	"state.ttl":              time.Hour,
	"state.stale_after":      10 * time.Minute,
	"state.cleanup_interval": time.Minute,

	"rate_limit.enabled":                  true,
	"rate_limit.per_user.limit":           30,
	"rate_limit.per_user.window":          "1m",
	"rate_limit.commands.chart.limit":     6,
	"rate_limit.commands.chart.window":    "1m",
	"rate_limit.commands.download.limit":  2,
	"rate_limit.commands.download.window": "1m",
	"rate_limit.whitelist":                []int64{},
}

// Load reads configuration from .env files, an optional YAML file and environment variables,
// validates it, and returns the resulting Config.
func Load() (Config, *viper.Viper, error) {
	// .env files are optional
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := fmt.Sprintf("./configs/%s.yaml", env)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("read config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil, fmt.Errorf("stat config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Bot.Token) == "" {
		return ErrMissingToken
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if cfg.Jobs.Backend == "asynq" && !cfg.Redis.Enabled {
		return errors.New("validate config: jobs.backend=asynq requires redis.enabled")
	}

	return nil
}

// Watch logs changes to the loaded config file. The running Config is never mutated;
// a restart is required for changes to take effect.
func Watch(v *viper.Viper, log *slog.Logger) {
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Warn("config file changed; restart to apply", slog.String("file", e.Name), slog.String("op", e.Op.String()))
	})
	v.WatchConfig()
}
