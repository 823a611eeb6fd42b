// Package detections loads clip-indexed detection tables: one row per
// (file, start_time, end_time) clip, one score column per class. A value
// greater than zero marks the class as detected in that clip. Rows across
// receivers share an absolute time origin; synchronization is the
// caller's responsibility.
package detections

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// Row is one clip of one receiver's audio with its per-class scores.
type Row struct {
	File   string
	Start  float64
	End    float64
	Values []float64 // parallel to the table's classes
}

// Table holds detections with stable ordering: classes keep their column
// order and rows keep their input order. The zero value is not usable;
// construct with New or a loader.
type Table struct {
	classes []string
	rows    []Row
}

// New returns an empty table with the given class columns.
func New(classes ...string) *Table {
	t := &Table{classes: make([]string, len(classes))}
	copy(t.classes, classes)
	return t
}

// Add appends a clip row. The number of values must match the number of
// class columns.
func (t *Table) Add(file string, start, end float64, values ...float64) error {
	if len(values) != len(t.classes) {
		return errors.Newf("row for %q has %d values, table has %d classes", file, len(values), len(t.classes)).
			Category(errors.CategoryValidation).
			Context("file", file).
			Build()
	}
	vals := make([]float64, len(values))
	copy(vals, values)
	t.rows = append(t.rows, Row{File: file, Start: start, End: end, Values: vals})
	return nil
}

// Classes returns the class columns in table order. The slice is shared;
// callers must not modify it.
func (t *Table) Classes() []string { return t.classes }

// Rows returns all rows in input order. The slice is shared; callers must
// not modify it.
func (t *Table) Rows() []Row { return t.rows }

// Len returns the number of clip rows.
func (t *Table) Len() int { return len(t.rows) }

// Files returns every distinct file in first-appearance order.
func (t *Table) Files() []string {
	seen := make(map[string]struct{}, len(t.rows))
	var files []string
	for i := range t.rows {
		if _, ok := seen[t.rows[i].File]; ok {
			continue
		}
		seen[t.rows[i].File] = struct{}{}
		files = append(files, t.rows[i].File)
	}
	return files
}

func (t *Table) classIndex(class string) int {
	for i, c := range t.classes {
		if c == class {
			return i
		}
	}
	return -1
}

// StartTimes returns the distinct clip start times with a positive score
// for class, ascending.
func (t *Table) StartTimes(class string) []float64 {
	ci := t.classIndex(class)
	if ci < 0 {
		return nil
	}
	seen := make(map[float64]struct{})
	var times []float64
	for i := range t.rows {
		if t.rows[i].Values[ci] <= 0 {
			continue
		}
		if _, ok := seen[t.rows[i].Start]; ok {
			continue
		}
		seen[t.rows[i].Start] = struct{}{}
		times = append(times, t.rows[i].Start)
	}
	sort.Float64s(times)
	return times
}

// DetectingFiles returns the files with a positive score for class in the
// clip starting at start, in row order without duplicates.
func (t *Table) DetectingFiles(class string, start float64) []string {
	ci := t.classIndex(class)
	if ci < 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var files []string
	for i := range t.rows {
		if t.rows[i].Start != start || t.rows[i].Values[ci] <= 0 {
			continue
		}
		if _, ok := seen[t.rows[i].File]; ok {
			continue
		}
		seen[t.rows[i].File] = struct{}{}
		files = append(files, t.rows[i].File)
	}
	return files
}

// ClipEnd returns the end time of the first clip of file starting at
// start, and whether such a clip exists.
func (t *Table) ClipEnd(file string, start float64) (float64, bool) {
	for i := range t.rows {
		if t.rows[i].File == file && t.rows[i].Start == start {
			return t.rows[i].End, true
		}
	}
	return 0, false
}

// Load reads a detection table, choosing the format from the file
// extension: .json is parsed as JSON, anything else as CSV.
func Load(path string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(path)
	}
	return LoadCSV(path)
}
