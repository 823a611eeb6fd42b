package myaudio

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/tphakala/flac"

	"github.com/tphakala/birdnet-array/internal/errors"
)

func loadFLACSegment(file *os.File, path string, offset, duration float64) (*Segment, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	sampleRate := decoder.SampleRate
	channels := decoder.NChannels
	bitDepth := decoder.BitsPerSample
	if sampleRate <= 0 || channels < 1 {
		return nil, errors.Newf("FLAC file %q reports sample rate %d and %d channels", path, sampleRate, channels).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	divisor, err := sampleDivisor(bitDepth)
	if err != nil {
		return nil, err
	}

	bytesPerSample := bitDepth / 8
	frameStride := bytesPerSample * channels

	startFrame, wantFrames := segmentWindow(offset, duration, sampleRate)
	samples := make([]float64, 0, wantFrames)

	skip := startFrame
	for len(samples) < wantFrames {
		frame, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}

		frames := len(frame) / frameStride
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
				sum += float64(pcmSample(frame[i*frameStride+c*bytesPerSample:], bitDepth))
			}
			samples = append(samples, sum/float64(channels)/divisor)
		}
	}

	if len(samples) == 0 {
		return nil, emptySegmentError(path, offset, duration)
	}
	return &Segment{Samples: samples, SampleRate: sampleRate}, nil
}

// pcmSample decodes one little-endian PCM sample, sign-extending 24-bit
// values.
func pcmSample(b []byte, bitDepth int) int32 {
	switch bitDepth {
	case 16:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v -= 1 << 24
		}
		return v
	case 32:
		return int32(binary.LittleEndian.Uint32(b))
	default:
		return 0
	}
}
