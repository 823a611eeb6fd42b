package myaudio

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// readBufferFrames is the PCM decode granularity, per channel.
const readBufferFrames = 8192

func loadWAVSegment(file *os.File, path string, offset, duration float64) (*Segment, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("not a valid WAV file: %q", path).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	sampleRate := int(decoder.SampleRate)
	channels := int(decoder.NumChans)
	if sampleRate <= 0 || channels < 1 {
		return nil, errors.Newf("WAV file %q reports sample rate %d and %d channels", path, sampleRate, channels).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	divisor, err := sampleDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	startFrame, wantFrames := segmentWindow(offset, duration, sampleRate)
	samples := make([]float64, 0, wantFrames)

	buf := &audio.IntBuffer{
		Data:   make([]int, readBufferFrames*channels),
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}

	skip := startFrame
	for len(samples) < wantFrames {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
		if n == 0 {
			break
		}

		frames := n / channels
		i := 0
		if skip > 0 {
			if frames <= skip {
				skip -= frames
				continue
			}
			i = skip
			skip = 0
		}
		for ; i < frames && len(samples) < wantFrames; i++ {
			var sum float64
			for c := range channels {
				sum += float64(buf.Data[i*channels+c])
			}
			samples = append(samples, sum/float64(channels)/divisor)
		}
	}

	if len(samples) == 0 {
		return nil, emptySegmentError(path, offset, duration)
	}
	return &Segment{Samples: samples, SampleRate: sampleRate}, nil
}
