// conf/validate.go

package conf

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	// Validate array geometry settings
	if err := validateArraySettings(&settings.Array); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate localization settings
	if err := validateLocalizationSettings(&settings.Localization); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate web server settings
	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate output settings
	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// If there are any errors, return the ValidationError
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateArraySettings validates the receiver array geometry settings
func validateArraySettings(settings *ArraySettings) error {
	var errs []string

	// Check if longitude is within valid range
	if settings.Longitude < -180 || settings.Longitude > 180 {
		errs = append(errs, "array longitude must be between -180 and 180")
	}

	// Check if latitude is within valid range
	if settings.Latitude < -90 || settings.Latitude > 90 {
		errs = append(errs, "array latitude must be between -90 and 90")
	}

	// Recording start maps clip-relative event times to wall clock
	if settings.RecordingStart != "" {
		if _, err := time.Parse(time.RFC3339, settings.RecordingStart); err != nil {
			errs = append(errs, fmt.Sprintf("array recording start must be an RFC 3339 timestamp: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("array settings errors: %v", errs)
	}
	return nil
}

// validateLocalizationSettings validates candidate grouping and solver parameters
func validateLocalizationSettings(settings *LocalizationSettings) error {
	var errs []string

	switch settings.Algorithm {
	case "gillette", "soundfinder":
	default:
		errs = append(errs, fmt.Sprintf("localization algorithm must be gillette or soundfinder, got %q", settings.Algorithm))
	}

	switch settings.CCFilter {
	case "phat", "cc":
	default:
		errs = append(errs, fmt.Sprintf("localization cc filter must be phat or cc, got %q", settings.CCFilter))
	}

	if settings.MaxReceiverDist <= 0 {
		errs = append(errs, "localization max receiver distance must be positive")
	}

	// Two receivers is the floor for any tdoa at all, solvers need more
	if settings.MinReceivers < 2 {
		errs = append(errs, "localization min receivers must be at least 2")
	}

	if settings.CCThreshold < 0 || settings.CCThreshold > 1 {
		errs = append(errs, "localization cc threshold must be between 0 and 1")
	}

	if settings.MaxDelay < 0 {
		errs = append(errs, "localization max delay must be non-negative")
	}

	if settings.ResidualThreshold < 0 {
		errs = append(errs, "localization residual threshold must be non-negative")
	}

	if settings.SpeedOfSound < 0 {
		errs = append(errs, "localization speed of sound must be non-negative")
	}

	if settings.Temperature <= -273.15 {
		errs = append(errs, "localization temperature must be above absolute zero")
	}

	if settings.Workers < 0 {
		errs = append(errs, "localization workers must be non-negative")
	}

	for class, band := range settings.Bandpass {
		if band.Low < 0 || band.High <= band.Low {
			errs = append(errs, fmt.Sprintf("bandpass for %q must satisfy 0 <= low < high, got %g-%g", class, band.Low, band.High))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("localization settings errors: %v", errs)
	}
	return nil
}

// validateWebServerSettings validates the HTTP API settings
func validateWebServerSettings(settings *WebServerSettings) error {
	if settings.Enabled && settings.Port == "" {
		return fmt.Errorf("webserver port is required when enabled")
	}
	return nil
}

// validateOutputSettings validates datastore, export and publishing settings
func validateOutputSettings(settings *OutputSettings) error {
	var errs []string

	if settings.File.Enabled {
		if settings.File.Path == "" {
			errs = append(errs, "output file path is required when file output is enabled")
		}
		for _, format := range settings.File.Formats {
			switch strings.ToLower(format) {
			case "csv", "json":
			default:
				errs = append(errs, fmt.Sprintf("unsupported output format: %s", format))
			}
		}
		if err := validateUploadSettings(&settings.File.Upload); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if settings.SQLite.Enabled && settings.SQLite.Path == "" {
		errs = append(errs, "output sqlite path is required when sqlite output is enabled")
	}

	if settings.MySQL.Enabled {
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" || settings.MySQL.Username == "" {
			errs = append(errs, "output mysql host, database and username are required when mysql output is enabled")
		}
	}

	if settings.MQTT.Enabled {
		if settings.MQTT.Broker == "" {
			errs = append(errs, "output mqtt broker is required when mqtt output is enabled")
		}
		if settings.MQTT.Topic == "" {
			errs = append(errs, "output mqtt topic is required when mqtt output is enabled")
		}
	}

	if settings.Notification.Enabled && len(settings.Notification.URLs) == 0 {
		errs = append(errs, "output notification urls are required when notifications are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("output settings errors: %v", errs)
	}
	return nil
}

// validateUploadSettings validates remote upload of exported files
func validateUploadSettings(settings *UploadSettings) error {
	if !settings.Enabled {
		return nil
	}

	switch settings.Protocol {
	case "ftp", "sftp":
	default:
		return fmt.Errorf("upload protocol must be ftp or sftp, got %q", settings.Protocol)
	}

	if settings.Host == "" {
		return fmt.Errorf("upload host is required when upload is enabled")
	}

	return nil
}
