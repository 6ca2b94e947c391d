package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// AMQPURL is optional; when empty the relay and push workers are not started.
	AMQPURL    string `envconfig:"AMQP_URL"`
	RelayMode  string `envconfig:"RELAY_MODE" default:"amqp"`
	RelayQueue string `envconfig:"RELAY_STREAM" default:"chat.events"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"168h"`

	MaxBodyBytes     int64         `envconfig:"MAX_BODY_BYTES" default:"4194304"`
	StoreTimeout     time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`
	HistoryPageLimit int           `envconfig:"HISTORY_PAGE_LIMIT" default:"50"`
	SendBuffer       int           `envconfig:"SEND_BUFFER" default:"256"`
	OutboxInterval   time.Duration `envconfig:"OUTBOX_INTERVAL" default:"500ms"`
	OutboxBatch      int           `envconfig:"OUTBOX_BATCH" default:"100"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.RelayMode != "amqp" && cfg.RelayMode != "stream" {
		return nil, fmt.Errorf("invalid RELAY_MODE %q: must be amqp or stream", cfg.RelayMode)
	}
	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
