// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `env:"HUDDLE_PORT" envDefault:"8080"`
	DBPath    string `env:"HUDDLE_DB_PATH" envDefault:"huddle.db"`
	LogLevel  string `env:"HUDDLE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"HUDDLE_LOG_FORMAT" envDefault:"text"`

	JWTSecret string        `env:"HUDDLE_JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"HUDDLE_TOKEN_TTL" envDefault:"720h"`

	// Login codes are mailed through Postmark; without a token they are logged.
	PostmarkToken string        `env:"HUDDLE_POSTMARK_TOKEN"`
	EmailFrom     string        `env:"HUDDLE_EMAIL_FROM" envDefault:"noreply@huddle.local"`
	LoginCodeTTL  time.Duration `env:"HUDDLE_LOGIN_CODE_TTL" envDefault:"15m"`

	// RedisURL selects the Redis change feed when set.
	RedisURL string `env:"HUDDLE_REDIS_URL"`

	Timezone       string        `env:"HUDDLE_TIMEZONE" envDefault:"UTC"`
	GraceDays      int           `env:"HUDDLE_AGENDA_GRACE_DAYS" envDefault:"1"`
	AgendaDebounce time.Duration `env:"HUDDLE_AGENDA_DEBOUNCE" envDefault:"0s"`
}

// Load reads an optional .env file from the working directory, then parses
// the environment. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.GraceDays < 0 {
		return nil, fmt.Errorf("HUDDLE_AGENDA_GRACE_DAYS must not be negative, got %d", cfg.GraceDays)
	}
	if cfg.LoginCodeTTL <= 0 {
		return nil, fmt.Errorf("HUDDLE_LOGIN_CODE_TTL must be positive, got %v", cfg.LoginCodeTTL)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
