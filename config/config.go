// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Telegram  TelegramConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Gemini    GeminiConfig
	Content   ContentConfig
	Scheduler SchedulerConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name            string        `env:"APP_NAME" envDefault:"surimil-bot"`
	Environment     Environment   `env:"APP_ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// TelegramConfig holds Telegram Bot settings.
type TelegramConfig struct {
	Token          string        `env:"TELEGRAM_BOT_TOKEN"`
	PollingTimeout time.Duration `env:"TELEGRAM_POLLING_TIMEOUT" envDefault:"60s"`
	Debug          bool          `env:"TELEGRAM_DEBUG" envDefault:"false"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
}

// RedisConfig holds Redis settings. Redis is optional: with an empty URL the
// bot runs without the AI reply cache and chat quota.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// GeminiConfig holds the Gemini API settings for the AI dialog.
type GeminiConfig struct {
	APIKey         string        `env:"GEMINI_API_KEY"`
	Model          string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	RequestTimeout time.Duration `env:"GEMINI_REQUEST_TIMEOUT" envDefault:"60s"`
	DailyQuota     int           `env:"GEMINI_DAILY_QUOTA" envDefault:"50"`
}

// ContentConfig holds paths to the content and locale catalogs.
type ContentConfig struct {
	Dir        string `env:"CONTENT_DIR" envDefault:"content"`
	LocalesDir string `env:"LOCALES_DIR" envDefault:"locales"`
	AssetsDir  string `env:"ASSETS_DIR" envDefault:"assets"`
}

// SchedulerConfig holds background job settings. Broadcast time is UTC.
type SchedulerConfig struct {
	Enabled         bool `env:"SCHEDULER_ENABLED" envDefault:"true"`
	BroadcastHour   int  `env:"BROADCAST_HOUR" envDefault:"7"`
	BroadcastMinute int  `env:"BROADCAST_MINUTE" envDefault:"0"`
}

// Load parses configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present. Missing secrets are a
// startup failure, not something to limp along without.
func (c *Config) Validate() error {
	var errs []string

	if c.Telegram.Token == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.Gemini.APIKey == "" {
		errs = append(errs, "GEMINI_API_KEY is required")
	}
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Scheduler.BroadcastHour < 0 || c.Scheduler.BroadcastHour > 23 {
		errs = append(errs, "BROADCAST_HOUR must be 0-23")
	}
	if c.Scheduler.BroadcastMinute < 0 || c.Scheduler.BroadcastMinute > 59 {
		errs = append(errs, "BROADCAST_MINUTE must be 0-59")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}
