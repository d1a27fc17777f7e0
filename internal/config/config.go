// Package config reads the service configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// Config is the whole service configuration.
type Config struct {
	// DatabaseURL selects the PostgreSQL store. Empty runs on the in-memory store.
	DatabaseURL string `env:"DATABASE_URL"`

	// RedisAddr enables the event hand-off to the bot process. Empty disables it.
	RedisAddr        string `env:"REDIS_ADDR"`
	RedisDB          int    `env:"REDIS_DB" envDefault:"0"`
	LobbyEventsQueue string `env:"LOBBY_EVENTS_QUEUE" envDefault:"smashbot_lobby_events"`

	Port string `env:"PORT" envDefault:"8080"`

	SearchTickInterval  time.Duration `env:"SEARCH_TICK_INTERVAL" envDefault:"1m"`
	RejectSweepInterval time.Duration `env:"REJECT_SWEEP_INTERVAL" envDefault:"10m"`
	RejectDefaultMargin time.Duration `env:"REJECT_DEFAULT_MARGIN" envDefault:"30m"`
	ConfirmationGrace   time.Duration `env:"CONFIRMATION_GRACE" envDefault:"3m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects intervals the scheduler cannot run with.
func (c *Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"SEARCH_TICK_INTERVAL":  c.SearchTickInterval,
		"REJECT_SWEEP_INTERVAL": c.RejectSweepInterval,
		"REJECT_DEFAULT_MARGIN": c.RejectDefaultMargin,
		"CONFIRMATION_GRACE":    c.ConfirmationGrace,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.RejectDefaultMargin < time.Minute {
		return fmt.Errorf("REJECT_DEFAULT_MARGIN must be at least 1m, got %s", c.RejectDefaultMargin)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
