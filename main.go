package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tphakala/birdnet-array/cmd"
	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/logging"
	"github.com/tphakala/birdnet-array/internal/telemetry"
)

// Populated by the build system via ldflags.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(run())
}

// run carries the exit code out past the deferred telemetry flush, which
// os.Exit in main would otherwise skip.
func run() int {
	logging.Init()

	// Load the configuration before building commands: flag defaults come
	// from viper, so viper must hold the config file values first.
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return 1
	}
	settings.Version = version
	settings.BuildDate = buildDate

	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}
	if settings.Main.Log.Enabled {
		logging.SetFileRotation(logging.FileRotation{
			MaxSizeMB:  settings.Main.Log.MaxSizeMB,
			MaxBackups: settings.Main.Log.MaxBackups,
			MaxAgeDays: settings.Main.Log.MaxAgeDays,
		})
	}

	if err := telemetry.Init(settings, version); err != nil {
		logging.Warn("telemetry initialization failed, continuing without it", "error", err)
	}
	defer telemetry.Flush(3 * time.Second)

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		return 1
	}
	return 0
}
