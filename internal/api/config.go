// Package api provides the read-only HTTP server for localization results.
// It serves stored runs and events from the datastore together with health
// and Prometheus metrics endpoints.
package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tphakala/birdnet-array/internal/conf"
)

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultLogPath is the default path for the server log file.
	DefaultLogPath = "logs/server.log"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Server binding
	Host string // host to bind to, empty for all interfaces
	Port string // port to listen on

	// Timeouts
	ReadTimeout     time.Duration // maximum duration for reading a request
	WriteTimeout    time.Duration // maximum duration for writing a response
	IdleTimeout     time.Duration // maximum time to wait for the next request
	ShutdownTimeout time.Duration // maximum time to wait for graceful shutdown

	// Limits
	BodyLimit string // maximum request body size (e.g. "1M")

	// Logging
	Debug    bool       // enable debug mode
	LogLevel slog.Level // logging level
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "",
		Port:            "8090",
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       "1M",
		Debug:           false,
		LogLevel:        slog.LevelInfo,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()

	if settings.WebServer.Port != "" {
		cfg.Port = settings.WebServer.Port
	}
	// Bind to all interfaces; the API is read-only.
	cfg.Host = ""

	cfg.Debug = settings.Debug
	if cfg.Debug {
		cfg.LogLevel = slog.LevelDebug
	}

	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	return nil
}

// Address returns the full address string for the server to listen on.
func (c *Config) Address() string {
	if c.Host == "" {
		return ":" + c.Port
	}
	return c.Host + ":" + c.Port
}
