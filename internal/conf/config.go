// config.go: settings struct definition and the functions to load, access and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/geom"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig defines the configuration for a rotating log file.
type LogConfig struct {
	Enabled    bool   // true to enable this log
	Path       string // path to the log file
	MaxSizeMB  int    // rotate after this many megabytes
	MaxBackups int    // number of rotated files to keep
	MaxAgeDays int    // days to retain rotated files
}

// InputConfig holds the detection table input, set from CLI flags.
type InputConfig struct {
	Detections string `yaml:"-"` // path to the detection table, csv or json
	AudioDir   string `yaml:"-"` // base directory for receiver audio files, empty to use paths as-is
}

// ArraySettings describes the receiver array geometry and its place on earth.
type ArraySettings struct {
	Receivers      string  // path to the receiver coordinates file, yaml or csv
	Latitude       float64 // latitude of the array origin, used for solar phase tagging
	Longitude      float64 // longitude of the array origin, used for solar phase tagging
	RecordingStart string  // recording start time in RFC 3339, maps event offsets to wall clock
}

// BandpassBand is a frequency band in Hz applied to receiver audio before
// cross-correlation.
type BandpassBand struct {
	Low  float64 // low cut frequency in Hz
	High float64 // high cut frequency in Hz
}

// LocalizationSettings contains candidate grouping and position solver parameters.
type LocalizationSettings struct {
	Algorithm         string                  // position solver, "gillette" or "soundfinder"
	MaxReceiverDist   float64                 // receivers within this many meters of the reference join its event
	MinReceivers      int                     // minimum receivers required to attempt localization
	CCThreshold       float64                 // cross-correlation peak a receiver must exceed to survive filtering
	CCFilter          string                  // cross-correlation weighting, "phat" or "cc"
	MaxDelay          float64                 // physically plausible delay bound in seconds, 0 for unbounded
	ResidualThreshold float64                 // residual RMS in meters above which an estimate is rejected, 0 for unbounded
	Bandpass          map[string]BandpassBand // per-class bandpass applied before correlation
	SpeedOfSound      float64                 // speed of sound in m/s, 0 to derive it from temperature
	Temperature       float64                 // air temperature in Celsius for the derived speed of sound
	Workers           int                     // events localized concurrently, 0 or 1 for sequential
}

// ResolveSpeedOfSound returns the configured speed of sound, deriving it from
// air temperature when no explicit value is set.
func (s *LocalizationSettings) ResolveSpeedOfSound() float64 {
	if s.SpeedOfSound > 0 {
		return s.SpeedOfSound
	}
	return geom.SpeedOfSound(s.Temperature)
}

// WebServerSettings contains settings for the read-only HTTP API.
type WebServerSettings struct {
	Enabled bool   // true to enable the HTTP API
	Port    string // port for the HTTP API
}

// MQTTSettings contains settings for MQTT event publishing.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT
	Broker   string // MQTT broker URI (tcp://host:port)
	Topic    string // MQTT topic localized events are published to
	Username string // MQTT username
	Password string // MQTT password
	Retain   bool   // true to set the retained flag on published events
}

// NotificationSettings contains settings for run summary notifications.
type NotificationSettings struct {
	Enabled     bool     // true to send a notification after each run
	URLs        []string // shoutrrr service URLs to deliver to
	MinInterval int      // minimum seconds between notifications
}

// UploadSettings pushes exported result files to a remote server.
type UploadSettings struct {
	Enabled  bool   // true to upload exported result files
	Protocol string // "ftp" or "sftp"
	Host     string // remote host
	Port     int    // remote port, 0 for the protocol default
	Username string // remote username
	Password string // remote password
	KeyFile  string // ssh private key path, used instead of password (sftp only)
	Path     string // remote directory to upload into
}

// FileOutputSettings controls export of localization results to files.
type FileOutputSettings struct {
	Enabled bool           // true to write result files
	Path    string         // directory result files are written into
	Formats []string       // formats to write, "csv" and/or "json"
	Upload  UploadSettings // optional upload of result files to a remote target
}

// SQLiteSettings contains settings for sqlite datastore output.
type SQLiteSettings struct {
	Enabled bool   // true to enable sqlite output
	Path    string // path to sqlite database
}

// MySQLSettings contains settings for mysql datastore output.
type MySQLSettings struct {
	Enabled  bool   // true to enable mysql output
	Username string // username for mysql database
	Password string // password for mysql database
	Database string // database name for mysql database
	Host     string // host for mysql database
	Port     string // port for mysql database
}

// OutputSettings groups datastore, file export and publishing settings.
type OutputSettings struct {
	File         FileOutputSettings   // file export of localization results
	SQLite       SQLiteSettings       // sqlite datastore
	MySQL        MySQLSettings        // mysql datastore
	MQTT         MQTTSettings         // event publishing over MQTT
	Notification NotificationSettings // run summary notifications
}

// SentrySettings contains settings for error tracking. Disabled by default,
// enabling is an explicit opt-in.
type SentrySettings struct {
	Enabled bool   // true to enable privacy-first error tracking
	DSN     string // sentry DSN override, empty to use the built-in project
}

// Settings contains all configuration options for birdnet-array.
type Settings struct {
	Debug bool // true to enable debug log output

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // version from build
	BuildDate string `yaml:"-"` // build date from build

	Main struct {
		Name string    // name of this array node, identifies the source of published events
		Log  LogConfig // log file configuration
	}

	Input InputConfig `yaml:"-"` // detection table input, set from CLI flags

	Array        ArraySettings        // receiver array geometry
	Localization LocalizationSettings // candidate grouping and solver parameters

	WebServer WebServerSettings // read-only HTTP API
	Output    OutputSettings    // datastore, file export and publishing
	Sentry    SentrySettings    // error tracking, opt-in
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and stores it as the active configuration.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	// Create a new settings struct
	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	// Save settings instance
	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Get OS specific config paths
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	// Assign config paths to Viper
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// Create directories for config file
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	// Write default config file
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings saves the current settings to the configuration file.
// It uses SaveYAMLConfig to handle the atomic write process.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	// Create a copy of the settings so the write does not race config updates
	settingsCopy := *settingsInstance

	// Find the path of the current config file
	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	// Save the settings to the config file
	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	// Marshal the settings struct to YAML
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write the YAML data to a temporary file
	// This is done to ensure atomic write operation
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	// Ensure the temporary file is removed in case of any failure
	defer os.Remove(tempFileName)

	// Write the YAML data to the temporary file
	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	// Close the temporary file after writing
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	// Try to rename the temporary file to replace the original config file
	// This is typically an atomic operation on most filesystems
	if err := os.Rename(tempFileName, configPath); err != nil {
		// If rename fails (e.g., cross-device link), fall back to copy & delete
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}
