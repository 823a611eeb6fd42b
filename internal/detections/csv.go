package detections

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// LoadCSV reads a detection table from a CSV file with header
// file,start_time,end_time followed by one column per class.
func LoadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	if len(records) == 0 {
		return nil, errors.Newf("detections file %q is empty", path).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	header := records[0]
	if len(header) < 3 || header[0] != "file" || header[1] != "start_time" || header[2] != "end_time" {
		return nil, errors.Newf("detections file %q must start with columns file,start_time,end_time", path).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	table := New(header[3:]...)
	for i, record := range records[1:] {
		line := i + 2 // header is line 1
		if len(record) != len(header) {
			return nil, errors.Newf("detections file %q line %d has %d fields, expected %d", path, line, len(record), len(header)).
				Category(errors.CategoryFileParsing).
				Context("path", path).
				Build()
		}

		start, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, parseError(path, line, "start_time", record[1])
		}
		end, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, parseError(path, line, "end_time", record[2])
		}

		values := make([]float64, len(record)-3)
		for j, field := range record[3:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, parseError(path, line, header[j+3], field)
			}
			values[j] = v
		}

		if err := table.Add(record[0], start, end, values...); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func parseError(path string, line int, column, value string) error {
	return errors.Newf("detections file %q line %d: invalid %s value %q", path, line, column, value).
		Category(errors.CategoryFileParsing).
		Context("path", path).
		Context("column", column).
		Build()
}
