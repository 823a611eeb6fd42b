// Package myaudio loads audio segments from receiver recordings for
// cross-correlation. WAV and FLAC files are decoded to float64 samples in
// [-1, 1]; multi-channel recordings are downmixed to mono by averaging.
package myaudio

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("myaudio")
	if logger == nil {
		logger = slog.Default().With("service", "myaudio")
	}
}

// Segment is a window of decoded audio.
type Segment struct {
	Samples    []float64
	SampleRate int
}

// Clone returns a deep copy. Consumers filter samples in place, so shared
// segments must be cloned first.
func (s *Segment) Clone() *Segment {
	samples := make([]float64, len(s.Samples))
	copy(samples, s.Samples)
	return &Segment{Samples: samples, SampleRate: s.SampleRate}
}

// Duration returns the segment length in seconds.
func (s *Segment) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// LoadSegment decodes the window [offset, offset+duration) seconds of an
// audio file, choosing the decoder by file extension (.wav or .flac).
// Offsets are sample-accurate. A window reaching past the end of the file
// yields the available samples; a window holding no samples at all is an
// error.
func LoadSegment(path string, offset, duration float64) (*Segment, error) {
	if offset < 0 || duration <= 0 {
		return nil, errors.Newf("invalid segment window: offset %g s, duration %g s", offset, duration).
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close()

	var seg *Segment
	start := time.Now()
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case "wav":
		seg, err = loadWAVSegment(file, path, offset, duration)
	case "flac":
		seg, err = loadFLACSegment(file, path, offset, duration)
	default:
		return nil, errors.Newf("unsupported audio format %q (supported: .wav, .flac)", filepath.Ext(path)).
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	if m := getMetrics(); m != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.RecordSegmentRead(format, status)
		m.RecordSegmentReadDuration(format, time.Since(start).Seconds())
	}
	return seg, err
}

// segmentWindow converts a seconds window into frame counts.
func segmentWindow(offset, duration float64, sampleRate int) (startFrame, wantFrames int) {
	startFrame = int(math.Round(offset * float64(sampleRate)))
	wantFrames = int(math.Round(duration * float64(sampleRate)))
	return startFrame, wantFrames
}

// sampleDivisor converts integer PCM amplitudes to [-1, 1].
func sampleDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported bit depth: %d", bitDepth).
			Category(errors.CategoryValidation).
			Context("bit_depth", bitDepth).
			Build()
	}
}

func emptySegmentError(path string, offset, duration float64) error {
	return errors.Newf("segment [%g, %g) s of %q contains no audio", offset, offset+duration, path).
		Category(errors.CategoryValidation).
		Context("path", path).
		Context("offset", offset).
		Context("duration", duration).
		Build()
}
