package myaudio

import (
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// WriteWAV saves float64 samples as a mono 16-bit PCM WAV file, creating
// parent directories as needed. Samples are expected in [-1, 1]; values
// outside clip at full scale. A sample of k/32768 round-trips exactly
// through LoadSegment.
func WriteWAV(path string, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return errors.Newf("invalid sample rate: %d", sampleRate).
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	if len(samples) == 0 {
		return errors.Newf("refusing to write empty WAV file %q", path).
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	outFile, err := os.Create(path)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer outFile.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		data[i] = int(v)
	}

	enc := wav.NewEncoder(outFile, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:   data,
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: 1},
	}
	if err := enc.Write(buf); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if err := enc.Close(); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
