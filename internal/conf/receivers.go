// receivers.go: loaders for receiver coordinate files.
package conf

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/geom"
)

// LoadReceivers reads receiver coordinates from a YAML or CSV file, selected
// by file extension. Coordinates are meters in a local planar frame, 2D or
// 3D, and every receiver in one file must share dimensionality.
//
// YAML files map receiver file names to coordinate lists:
//
//	a.wav: [0.0, 0.0]
//	b.wav: [10.0, 0.0]
//
// CSV files carry a "file,x,y" or "file,x,y,z" header followed by one row
// per receiver.
func LoadReceivers(path string) (map[string]geom.Point, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadReceiversYAML(path)
	case ".csv":
		return loadReceiversCSV(path)
	default:
		return nil, errors.Newf("unsupported receiver file format %q, use yaml or csv", filepath.Ext(path)).
			Component("conf").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
}

func loadReceiversYAML(path string) (map[string]geom.Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "read-receivers").
			Context("path", path).
			Build()
	}

	raw := make(map[string][]float64)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "parse-receivers-yaml").
			Context("path", path).
			Build()
	}

	return receiverMap(raw, path)
}

func loadReceiversCSV(path string) (map[string]geom.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "read-receivers").
			Context("path", path).
			Build()
	}
	defer f.Close()

	reader := csv.NewReader(f)
	// Row width varies between 2D and 3D files, checked in receiverMap
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "parse-receivers-csv").
			Context("path", path).
			Build()
	}
	if len(records) == 0 {
		return nil, errors.Newf("receiver csv is empty").
			Component("conf").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	header := records[0]
	if len(header) < 3 || !strings.EqualFold(strings.TrimSpace(header[0]), "file") {
		return nil, errors.Newf("receiver csv must start with a file,x,y[,z] header").
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	raw := make(map[string][]float64, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 3 {
			return nil, errors.Newf("receiver row needs a file and at least two coordinates: %v", record).
				Component("conf").
				Category(errors.CategoryFileParsing).
				Context("path", path).
				Build()
		}

		file := strings.TrimSpace(record[0])
		if file == "" {
			return nil, errors.Newf("receiver row has an empty file name: %v", record).
				Component("conf").
				Category(errors.CategoryFileParsing).
				Context("path", path).
				Build()
		}
		if _, ok := raw[file]; ok {
			return nil, errors.Newf("duplicate receiver %s", file).
				Component("conf").
				Category(errors.CategoryValidation).
				Context("path", path).
				Build()
		}

		coords := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			value, err := cast.ToFloat64E(strings.TrimSpace(field))
			if err != nil {
				return nil, errors.Newf("invalid coordinate %q for receiver %s", field, file).
					Component("conf").
					Category(errors.CategoryFileParsing).
					Context("path", path).
					Build()
			}
			coords = append(coords, value)
		}
		raw[file] = coords
	}

	return receiverMap(raw, path)
}

// receiverMap validates raw coordinate lists and converts them to points.
func receiverMap(raw map[string][]float64, path string) (map[string]geom.Point, error) {
	if len(raw) == 0 {
		return nil, errors.Newf("receiver file contains no receivers").
			Component("conf").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	files := make([]string, 0, len(raw))
	for file := range raw {
		files = append(files, file)
	}
	sort.Strings(files)

	dim := 0
	receivers := make(map[string]geom.Point, len(raw))
	for _, file := range files {
		coords := raw[file]
		if len(coords) != 2 && len(coords) != 3 {
			return nil, errors.Newf("receiver %s has %d coordinates, want 2 or 3", file, len(coords)).
				Component("conf").
				Category(errors.CategoryValidation).
				Context("path", path).
				Build()
		}
		if dim == 0 {
			dim = len(coords)
		} else if len(coords) != dim {
			return nil, errors.Newf("receiver %s is %dD but the rest of the file is %dD", file, len(coords), dim).
				Component("conf").
				Category(errors.CategoryValidation).
				Context("path", path).
				Build()
		}
		receivers[file] = geom.Point(coords).Clone()
	}

	return receivers, nil
}
