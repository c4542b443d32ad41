package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TARKA_DB_DSN", "/tmp/tarka-test.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.OpTimeout != 5*time.Second {
		t.Errorf("OpTimeout = %v, want 5s", cfg.Database.OpTimeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TARKA_DB_DSN", "/data/graph.db")
	t.Setenv("TARKA_HTTP_PORT", "9090")
	t.Setenv("TARKA_OP_TIMEOUT", "250ms")
	t.Setenv("TARKA_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN != "/data/graph.db" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.OpTimeout != 250*time.Millisecond {
		t.Errorf("OpTimeout = %v, want 250ms", cfg.Database.OpTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"negative timeout", func(c *Config) { c.Database.OpTimeout = -time.Second }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "shout" }, true},
		{"zero timeout disables deadline", func(c *Config) { c.Database.OpTimeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{Host: "127.0.0.1", Port: 8080},
				Database: DatabaseConfig{DSN: "/tmp/t.db", OpTimeout: 5 * time.Second},
				Log:      LogConfig{Level: "info"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	sc := &ServerConfig{Host: "127.0.0.1", Port: 9090}
	if got := sc.Addr(); got != "127.0.0.1:9090" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9090", got)
	}
}
