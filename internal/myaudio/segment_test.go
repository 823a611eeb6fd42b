package myaudio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampSamples generates n distinct sample values on the exact 1/32768
// grid, so 16-bit WAV round-trips are bit-exact.
func rampSamples(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64((i*7)%2048-1024) / 32768
	}
	return out
}

func writeTestWAV(t *testing.T, samples []float64, sampleRate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, WriteWAV(path, samples, sampleRate))
	return path
}

func TestLoadSegmentWAV(t *testing.T) {
	const sampleRate = 8000
	samples := rampSamples(2 * sampleRate) // two seconds
	path := writeTestWAV(t, samples, sampleRate)

	t.Run("interior window", func(t *testing.T) {
		seg, err := LoadSegment(path, 0.5, 0.25)
		require.NoError(t, err)
		assert.Equal(t, sampleRate, seg.SampleRate)
		assert.Equal(t, samples[4000:6000], seg.Samples)
	})

	t.Run("window from start", func(t *testing.T) {
		seg, err := LoadSegment(path, 0, 0.1)
		require.NoError(t, err)
		assert.Equal(t, samples[:800], seg.Samples)
	})

	t.Run("window past end is truncated", func(t *testing.T) {
		seg, err := LoadSegment(path, 1.9, 0.5)
		require.NoError(t, err)
		assert.Equal(t, samples[15200:], seg.Samples)
		assert.InDelta(t, 0.1, seg.Duration(), 1e-9)
	})

	t.Run("window beyond file", func(t *testing.T) {
		_, err := LoadSegment(path, 3.0, 0.5)
		assert.Error(t, err)
	})
}

func TestLoadSegmentValidation(t *testing.T) {
	path := writeTestWAV(t, rampSamples(800), 8000)

	tests := []struct {
		name     string
		offset   float64
		duration float64
	}{
		{"negative offset", -1, 1},
		{"zero duration", 0, 0},
		{"negative duration", 0, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSegment(path, tt.offset, tt.duration)
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSegment(filepath.Join(t.TempDir(), "absent.wav"), 0, 1)
		assert.Error(t, err)
	})

	t.Run("unsupported format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clip.mp3")
		require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))
		_, err := LoadSegment(path, 0, 1)
		assert.Error(t, err)
	})

	t.Run("corrupt wav", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clip.wav")
		require.NoError(t, os.WriteFile(path, []byte("RIFFgarbage"), 0o644))
		_, err := LoadSegment(path, 0, 1)
		assert.Error(t, err)
	})

	t.Run("corrupt flac", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clip.flac")
		require.NoError(t, os.WriteFile(path, []byte("not a flac stream"), 0o644))
		_, err := LoadSegment(path, 0, 1)
		assert.Error(t, err)
	})
}

func TestLoadSegmentStereoDownmix(t *testing.T) {
	const sampleRate = 8000
	path := filepath.Join(t.TempDir(), "stereo.wav")

	out, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(out, sampleRate, 16, 2, 1)
	// 100 frames: left channel 1000+i, right channel -(1000+i)+2, so the
	// per-frame mean is exactly 1/32768.
	data := make([]int, 200)
	for i := 0; i < 100; i++ {
		data[2*i] = 1000 + i
		data[2*i+1] = -(1000 + i) + 2
	}
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:   data,
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: 2},
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, out.Close())

	seg, err := LoadSegment(path, 0, float64(100)/sampleRate)
	require.NoError(t, err)
	require.Len(t, seg.Samples, 100)
	for _, s := range seg.Samples {
		assert.InDelta(t, 1.0/32768, s, 1e-12)
	}
}

func TestPCMSample(t *testing.T) {
	tests := []struct {
		name     string
		bytes    []byte
		bitDepth int
		want     int32
	}{
		{"16-bit positive", []byte{0x34, 0x12}, 16, 0x1234},
		{"16-bit negative", []byte{0x00, 0x80}, 16, -32768},
		{"24-bit positive max", []byte{0xFF, 0xFF, 0x7F}, 24, 8388607},
		{"24-bit negative min", []byte{0x00, 0x00, 0x80}, 24, -8388608},
		{"24-bit minus one", []byte{0xFF, 0xFF, 0xFF}, 24, -1},
		{"32-bit negative", []byte{0x00, 0x00, 0x00, 0x80}, 32, -2147483648},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pcmSample(tt.bytes, tt.bitDepth))
		})
	}
}

func TestCachingLoader(t *testing.T) {
	const sampleRate = 8000
	samples := rampSamples(sampleRate)
	path := writeTestWAV(t, samples, sampleRate)

	loader := NewCachingLoader(time.Minute)

	seg1, err := loader.LoadSegment(path, 0, 0.5)
	require.NoError(t, err)
	hits, misses := loader.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(1), misses)

	// Mutating a returned segment must not poison the cache.
	seg1.Samples[0] = 42

	seg2, err := loader.LoadSegment(path, 0, 0.5)
	require.NoError(t, err)
	hits, misses = loader.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, samples[0], seg2.Samples[0])

	// Different windows are distinct entries.
	_, err = loader.LoadSegment(path, 0.25, 0.5)
	require.NoError(t, err)
	_, misses = loader.Stats()
	assert.Equal(t, int64(2), misses)

	t.Run("propagates load errors", func(t *testing.T) {
		_, err := loader.LoadSegment(filepath.Join(t.TempDir(), "absent.wav"), 0, 1)
		assert.Error(t, err)
	})
}

func TestDirLoader(t *testing.T) {
	const sampleRate = 8000
	samples := rampSamples(sampleRate)
	dir := t.TempDir()
	require.NoError(t, WriteWAV(filepath.Join(dir, "clip.wav"), samples, sampleRate))

	loader := &DirLoader{Dir: dir}

	t.Run("relative path resolves against dir", func(t *testing.T) {
		seg, err := loader.LoadSegment("clip.wav", 0, 0.5)
		require.NoError(t, err)
		assert.Equal(t, samples[:4000], seg.Samples)
	})

	t.Run("absolute path passes through", func(t *testing.T) {
		seg, err := loader.LoadSegment(filepath.Join(dir, "clip.wav"), 0, 0.5)
		require.NoError(t, err)
		assert.Equal(t, samples[:4000], seg.Samples)
	})

	t.Run("delegates to next loader", func(t *testing.T) {
		caching := NewCachingLoader(time.Minute)
		wrapped := &DirLoader{Dir: dir, Next: caching}

		_, err := wrapped.LoadSegment("clip.wav", 0, 0.25)
		require.NoError(t, err)
		_, err = wrapped.LoadSegment("clip.wav", 0, 0.25)
		require.NoError(t, err)

		hits, misses := caching.Stats()
		assert.Equal(t, int64(1), hits)
		assert.Equal(t, int64(1), misses)
	})
}

func TestSegmentClone(t *testing.T) {
	seg := &Segment{Samples: []float64{1, 2, 3}, SampleRate: 8000}
	dup := seg.Clone()
	dup.Samples[0] = 9

	assert.Equal(t, 1.0, seg.Samples[0])
	assert.Equal(t, seg.SampleRate, dup.SampleRate)
	assert.InDelta(t, 3.0/8000, seg.Duration(), 1e-12)
}

func TestWriteWAVValidation(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, WriteWAV(filepath.Join(dir, "x.wav"), nil, 8000))
	assert.Error(t, WriteWAV(filepath.Join(dir, "x.wav"), []float64{0.1}, 0))
}
