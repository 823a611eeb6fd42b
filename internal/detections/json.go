package detections

import (
	"os"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// LoadJSON reads a detection table from a JSON document of the form
//
//	{
//	  "classes": ["species a", "species b"],
//	  "clips": [
//	    {"file": "rec1.wav", "start_time": 0, "end_time": 3, "detections": [1, 0]}
//	  ]
//	}
//
// where each clip's detections array is parallel to classes.
func LoadJSON(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	root, err := jason.NewObjectFromBytes(data)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	classes, err := root.GetStringArray("classes")
	if err != nil {
		return nil, jsonFieldError(path, "classes", err)
	}
	clips, err := root.GetObjectArray("clips")
	if err != nil {
		return nil, jsonFieldError(path, "clips", err)
	}

	table := New(classes...)
	for i, clip := range clips {
		file, err := clip.GetString("file")
		if err != nil {
			return nil, jsonClipError(path, i, "file", err)
		}
		start, err := clip.GetFloat64("start_time")
		if err != nil {
			return nil, jsonClipError(path, i, "start_time", err)
		}
		end, err := clip.GetFloat64("end_time")
		if err != nil {
			return nil, jsonClipError(path, i, "end_time", err)
		}
		values, err := clip.GetFloat64Array("detections")
		if err != nil {
			return nil, jsonClipError(path, i, "detections", err)
		}

		if err := table.Add(file, start, end, values...); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func jsonFieldError(path, field string, err error) error {
	return errors.Newf("detections file %q: missing or invalid %q: %w", path, field, err).
		Category(errors.CategoryFileParsing).
		Context("path", path).
		Context("field", field).
		Build()
}

func jsonClipError(path string, index int, field string, err error) error {
	return errors.Newf("detections file %q: clip %d: missing or invalid %q: %w", path, index, field, err).
		Category(errors.CategoryFileParsing).
		Context("path", path).
		Context("clip_index", index).
		Context("field", field).
		Build()
}
