package logger

import (
	"os"
	"strings"
)

// Config holds logger configuration.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "console" or "json"
	Caller bool   // Include caller information
}

// ConfigFromEnv creates a logger configuration from environment variables.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Level:  "info",
		Format: "console",
		Caller: false,
	}

	if levelStr := os.Getenv("RELAY_LOG_LEVEL"); levelStr != "" {
		cfg.Level = strings.ToLower(levelStr)
	}
	if format := os.Getenv("RELAY_LOG_FORMAT"); format != "" {
		cfg.Format = strings.ToLower(format)
	}
	cfg.Caller = os.Getenv("RELAY_LOG_CALLER") == "true"

	return cfg
}

// IsDevelopment returns true if the logger is configured for console output.
func (c *Config) IsDevelopment() bool {
	return c.Format != "json"
}
