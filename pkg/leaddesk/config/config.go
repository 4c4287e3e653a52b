package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root application configuration.
type Config struct {
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Log         LogConfig
	Sentry      SentryConfig
	Redis       RedisConfig
	Notify      NotifyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `env:"PORT"                    env-default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds connection settings. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver       string `env:"DATABASE_DRIVER"         env-default:"sqlite"`
	DSN          string `env:"DATABASE_DSN"            env-default:"leaddesk.db"`
	MaxIdleConns int    `env:"DATABASE_MAX_IDLE_CONNS" env-default:"10"`
	MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS" env-default:"100"`
}

// AuthConfig holds staff authentication settings.
type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET"     env-default:"leaddesk-dev-secret-change-in-production"`
	TokenTTL      time.Duration `env:"JWT_TOKEN_TTL"  env-default:"24h"`
	AdminEmail    string        `env:"ADMIN_EMAIL"    env-default:"admin@leaddesk.local"`
	AdminPassword string        `env:"ADMIN_PASSWORD" env-default:"changeme"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN string `env:"SENTRY_DSN"`
}

// RedisConfig configures the notification publisher.
type RedisConfig struct {
	Enabled       bool   `env:"REDIS_ENABLED"        env-default:"false"`
	Address       string `env:"REDIS_ADDR"           env-default:"localhost:6379"`
	Password      string `env:"REDIS_PASSWORD"`
	DB            int    `env:"REDIS_DB"             env-default:"0"`
	ChannelPrefix string `env:"REDIS_CHANNEL_PREFIX" env-default:"notifications"`
}

// NotifyConfig tunes the notification relay worker.
type NotifyConfig struct {
	RelayInterval time.Duration `env:"NOTIFY_RELAY_INTERVAL" env-default:"2s"`
	BatchSize     int           `env:"NOTIFY_BATCH_SIZE"     env-default:"100"`
}

// Load reads an optional .env file and then the environment.
// Priority: ENV > .env > defaults (via env-default tags).
func Load() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings that tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format))
	}

	if c.Environment == "production" {
		if strings.Contains(c.Auth.JWTSecret, "dev-secret") {
			errs = append(errs, errors.New("JWT_SECRET must be set in production"))
		}
		if c.Auth.AdminPassword == "changeme" {
			errs = append(errs, errors.New("ADMIN_PASSWORD must be changed in production"))
		}
	}

	if c.Notify.BatchSize <= 0 {
		errs = append(errs, errors.New("NOTIFY_BATCH_SIZE must be positive"))
	}
	if c.Notify.RelayInterval <= 0 {
		errs = append(errs, errors.New("NOTIFY_RELAY_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}
