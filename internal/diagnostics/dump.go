package diagnostics

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// Dump is the metadata envelope of a support archive.
type Dump struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version"`
	Host      *HostSnapshot `json:"host"`
}

// NewDump wraps a snapshot for archival.
func NewDump(version string, host *HostSnapshot) *Dump {
	return &Dump{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Version:   version,
		Host:      host,
	}
}

// WriteArchive writes a support archive: metadata.json with the dump
// envelope and config.yaml with the scrubbed configuration.
func WriteArchive(w io.Writer, dump *Dump, configYAML []byte) error {
	archive := zip.NewWriter(w)

	meta, err := archive.Create("metadata.json")
	if err != nil {
		return archiveError("create metadata.json", err)
	}
	enc := json.NewEncoder(meta)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return archiveError("write metadata.json", err)
	}

	if len(configYAML) > 0 {
		cfg, err := archive.Create("config.yaml")
		if err != nil {
			return archiveError("create config.yaml", err)
		}
		if _, err := cfg.Write(configYAML); err != nil {
			return archiveError("write config.yaml", err)
		}
	}

	if err := archive.Close(); err != nil {
		return archiveError("close archive", err)
	}
	return nil
}

func archiveError(op string, err error) error {
	return errors.New(fmt.Errorf("support archive: %s: %w", op, err)).
		Component("diagnostics").
		Category(errors.CategoryFileIO).
		Build()
}

// sensitiveKeys are config keys whose values never belong in a support
// dump.
var sensitiveKeys = map[string]bool{
	"password": true,
	"username": true,
	"broker":   true,
	"urls":     true,
	"dsn":      true,
	"keyfile":  true,
}

// ScrubConfig masks secret values in YAML config text, preserving the
// document structure so the dump stays diffable against the original.
func ScrubConfig(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		// List items: urls and similar hold credentials inside the URL.
		if value, ok := strings.CutPrefix(trimmed, "- "); ok {
			if strings.Contains(value, "://") {
				indent := line[:strings.Index(line, "-")]
				lines[i] = indent + "- " + maskURL(value)
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if sensitiveKeys[strings.ToLower(strings.TrimSpace(key))] {
			lines[i] = key + ": " + strings.Repeat("*", len(value))
		} else if strings.Contains(value, "://") {
			lines[i] = key + ": " + maskURL(value)
		}
	}
	return strings.Join(lines, "\n")
}

// maskURL keeps the scheme and masks the rest.
func maskURL(value string) string {
	scheme, rest, ok := strings.Cut(value, "://")
	if !ok {
		return strings.Repeat("*", len(value))
	}
	return scheme + "://" + strings.Repeat("*", len(rest))
}
