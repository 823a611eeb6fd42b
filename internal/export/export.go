// Package export serializes localization results to CSV and JSON files
// and optionally pushes them to a remote FTP or SFTP target.
//
// Serialization is deliberately caller-side: the localization pipeline
// returns events, and what becomes of them (files, database rows, MQTT
// payloads) is wiring that lives outside the core.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/localization"
	"github.com/tphakala/birdnet-array/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("export")
	if logger == nil {
		logger = slog.Default().With("service", "export")
	}
}

// Record is one event flattened for serialization. Position and residual
// fields are nil for events that never reached a solve, so JSON renders
// them as null instead of failing on NaN.
type Record struct {
	State         string   `json:"state"`
	Class         string   `json:"class"`
	Start         float64  `json:"start"`
	Duration      float64  `json:"duration"`
	ReferenceFile string   `json:"reference_file"`
	Receivers     []string `json:"receivers"`
	X             *float64 `json:"x"`
	Y             *float64 `json:"y"`
	Z             *float64 `json:"z,omitempty"`
	ResidualRMS   *float64 `json:"residual_rms"`
	MeanCCMax     *float64 `json:"mean_cc_max"`
}

// NewRecord flattens an event. Localized and rejected events share the
// same shape; absent or non-finite values become nil.
func NewRecord(event *localization.Event) Record {
	r := Record{
		State:         string(event.State),
		Class:         event.Class,
		Start:         event.Start,
		Duration:      event.Duration,
		ReferenceFile: event.ReceiverFiles[0],
		Receivers:     event.ReceiverFiles,
	}
	if len(event.Estimate) >= 2 {
		r.X = finitePtr(event.Estimate[0])
		r.Y = finitePtr(event.Estimate[1])
	}
	if len(event.Estimate) >= 3 {
		r.Z = finitePtr(event.Estimate[2])
	}
	r.ResidualRMS = finitePtr(event.ResidualRMS)
	if len(event.CCMaxs) > 1 {
		r.MeanCCMax = finitePtr(event.MeanCCMax())
	}
	return r
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Records flattens localized and unlocalized events in order, localized
// first. Both lists keep their pipeline ordering.
func Records(localized, unlocalized []*localization.Event) []Record {
	records := make([]Record, 0, len(localized)+len(unlocalized))
	for _, event := range localized {
		records = append(records, NewRecord(event))
	}
	for _, event := range unlocalized {
		records = append(records, NewRecord(event))
	}
	return records
}

// csvHeader is the column order of exported CSV files.
var csvHeader = []string{
	"state", "class", "start", "duration", "reference_file",
	"receiver_count", "x", "y", "z", "residual_rms", "mean_cc_max",
}

// WriteFiles writes the events under dir once per requested format
// ("csv", "json") using baseName for the file stem, and returns the paths
// written. The directory is created when missing.
func WriteFiles(dir, baseName string, formats []string, localized, unlocalized []*localization.Event) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	records := Records(localized, unlocalized)
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		var (
			path string
			err  error
		)
		switch strings.ToLower(format) {
		case "csv":
			path = filepath.Join(dir, baseName+".csv")
			err = writeCSV(path, records)
		case "json":
			path = filepath.Join(dir, baseName+".json")
			err = writeJSON(path, records)
		default:
			return paths, errors.Newf("unsupported export format %q", format).
				Component("export").
				Category(errors.CategoryValidation).
				Build()
		}
		if err != nil {
			return paths, err
		}
		logger.Info("results written", "path", path, "events", len(records))
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSV(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return writeError(path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return writeError(path, err)
	}
	for i := range records {
		if err := w.Write(csvRow(&records[i])); err != nil {
			_ = f.Close()
			return writeError(path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return writeError(path, err)
	}
	if err := f.Close(); err != nil {
		return writeError(path, err)
	}
	return nil
}

func csvRow(r *Record) []string {
	return []string{
		r.State,
		r.Class,
		formatFloat(r.Start),
		formatFloat(r.Duration),
		r.ReferenceFile,
		strconv.Itoa(len(r.Receivers)),
		formatFloatPtr(r.X),
		formatFloatPtr(r.Y),
		formatFloatPtr(r.Z),
		formatFloatPtr(r.ResidualRMS),
		formatFloatPtr(r.MeanCCMax),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatFloatPtr renders absent values as empty cells.
func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func writeJSON(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return writeError(path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		_ = f.Close()
		return writeError(path, err)
	}
	if err := f.Close(); err != nil {
		return writeError(path, err)
	}
	return nil
}

func writeError(path string, err error) error {
	return errors.New(fmt.Errorf("write %s: %w", path, err)).
		Component("export").
		Category(errors.CategoryFileIO).
		Build()
}
