// Package telemetry provides opt-in Sentry error reporting. Nothing leaves
// the host unless the operator enables telemetry in the configuration, and
// every event passes a privacy filter that anonymizes URLs and strips host
// identity before upload.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/logging"
	"github.com/tphakala/birdnet-array/internal/privacy"
)

// defaultDSN identifies the birdnet-array Sentry project. A DSN routes
// event intake, it is not a secret; operators can point elsewhere via
// the sentry.dsn setting.
const defaultDSN = "https://c3f1a86b4d2e95708cab1f6d03e4a921@o4508112334356480.ingest.de.sentry.io/4508112391127040"

var logger *slog.Logger

func init() {
	logger = logging.ForService("telemetry")
	if logger == nil {
		logger = slog.Default().With("service", "telemetry")
	}
}

// Init wires error reporting according to settings. The privacy scrubber
// is installed unconditionally so error messages are scrubbed wherever
// they end up; the Sentry client itself starts only when the operator has
// enabled telemetry.
func Init(settings *conf.Settings, version string) error {
	errors.SetPrivacyScrubber(privacy.ScrubMessage)

	if settings == nil || !settings.Sentry.Enabled {
		errors.SetTelemetryReporter(errors.NewSentryReporter(false))
		return nil
	}

	dsn := settings.Sentry.DSN
	if dsn == "" {
		dsn = defaultDSN
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        dsn,
		SampleRate: 1.0,
		Debug:      false,

		// Privacy-compliant settings
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "", // explicitly clear to prevent hostname leakage

		Release: fmt.Sprintf("birdnet-array@%s", version),

		BeforeSend: beforeSend,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry-init").
			Build()
	}

	systemID := resolveSystemID()
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", systemID)
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	logger.Info("telemetry enabled", "system_id", systemID)

	return nil
}

// Flush drains buffered events, typically deferred from main before exit.
// Safe to call when telemetry was never initialized.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// beforeSend applies privacy filters to every outgoing event.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	// Clear user data and server name
	event.User = sentry.User{}
	event.ServerName = ""

	// Scrub URLs out of the message and exception values
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	// Remove sensitive contexts
	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	// Remove sensitive tags
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Modules = nil
	event.Request = nil

	return event
}

// resolveSystemID returns the persistent anonymous install identifier,
// falling back to an ephemeral one when the config directory is not
// writable.
func resolveSystemID() string {
	var configDir string
	if paths, err := conf.GetDefaultConfigPaths(); err == nil && len(paths) > 0 {
		configDir = paths[0]
	}

	id, err := LoadOrCreateSystemID(configDir)
	if err != nil {
		logger.Debug("system ID not persisted", "error", err)
		if id, err = privacy.GenerateSystemID(); err != nil {
			return "0000-0000-0000"
		}
	}
	return id
}

// LoadOrCreateSystemID loads the anonymous system identifier from
// configDir, generating and persisting a new one when missing or invalid.
// The identifier correlates telemetry events from one install across runs
// without revealing anything about the host.
func LoadOrCreateSystemID(configDir string) (string, error) {
	if configDir == "" {
		return "", errors.Newf("no config directory for system ID").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	idFile := filepath.Join(configDir, ".system_id")

	if data, err := os.ReadFile(idFile); err == nil {
		id := strings.TrimSpace(string(data))
		if privacy.IsValidSystemID(id) {
			return id, nil
		}
	}

	id, err := privacy.GenerateSystemID()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(idFile, []byte(id), 0o644); err != nil {
		return "", err
	}

	return id, nil
}
