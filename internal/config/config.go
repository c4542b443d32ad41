// Package config loads application configuration from environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"TARKA_HTTP_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"TARKA_HTTP_PORT" envDefault:"8080"`
}

// DatabaseConfig holds storage configuration.
type DatabaseConfig struct {
	// DSN points at the SQLite database file. Empty selects
	// ~/.tarka/tarka.db, created on first use.
	DSN string `env:"TARKA_DB_DSN"`
	// OpTimeout bounds each storage-backed operation. Zero disables
	// the deadline.
	OpTimeout time.Duration `env:"TARKA_OP_TIMEOUT" envDefault:"5s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `env:"TARKA_LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	if cfg.Database.DSN == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir := filepath.Join(home, ".tarka")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		cfg.Database.DSN = filepath.Join(dir, "tarka.db")
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("TARKA_HTTP_PORT must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Database.OpTimeout < 0 {
		return fmt.Errorf("TARKA_OP_TIMEOUT must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("TARKA_LOG_LEVEL: %w", err)
	}
	return nil
}

// Addr returns the HTTP server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewLogger builds the application logger. Output goes to stderr so it
// never interferes with the MCP stdio transport on stdout.
func (c *LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}
