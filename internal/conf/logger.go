// Package conf provides configuration management for birdnet-array.
package conf

import (
	"log/slog"

	"github.com/tphakala/birdnet-array/internal/logging"
)

// getLogger returns the config package logger. It is fetched from the global
// logger on every call so early callers pick up handlers installed after
// package init.
func getLogger() *slog.Logger {
	if l := logging.ForService("config"); l != nil {
		return l
	}
	return slog.Default().With("service", "config")
}
