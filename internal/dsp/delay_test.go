package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateDelayRecoversShift(t *testing.T) {
	const sampleRate = 8000
	ref := chirp(2000, sampleRate, 400, 1600)

	tests := []struct {
		name   string
		shift  int
		filter CCFilter
	}{
		{"positive shift phat", 5, FilterPHAT},
		{"negative shift phat", -3, FilterPHAT},
		{"zero shift phat", 0, FilterPHAT},
		{"positive shift cc", 5, FilterCC},
		{"negative shift cc", -3, FilterCC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := delayed(ref, tt.shift)

			delay, ccMax, err := EstimateDelay(sig, ref, sampleRate, WithFilter(tt.filter))
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.shift)/sampleRate, delay, 1e-9)
			assert.Greater(t, ccMax, 0.5)
		})
	}
}

func TestEstimateDelayUnequalLengths(t *testing.T) {
	const sampleRate = 8000
	ref := chirp(256, sampleRate, 300, 1200)
	sig := make([]float64, 30+len(ref))
	copy(sig[30:], ref)

	delay, _, err := EstimateDelay(sig, ref, sampleRate)
	require.NoError(t, err)
	assert.InDelta(t, 30.0/sampleRate, delay, 1e-9)
}

func TestEstimateDelayMaxDelay(t *testing.T) {
	const sampleRate = 1000
	ref := make([]float64, 400)
	ref[100] = 1
	// Two echoes of the reference impulse: a weak one at +5 samples and a
	// strong one at +60.
	sig := make([]float64, 400)
	sig[105] = 0.5
	sig[160] = 1

	t.Run("unrestricted picks the strong peak", func(t *testing.T) {
		delay, _, err := EstimateDelay(sig, ref, sampleRate, WithFilter(FilterCC))
		require.NoError(t, err)
		assert.InDelta(t, 60.0/sampleRate, delay, 1e-9)
	})

	t.Run("restricted picks the near peak", func(t *testing.T) {
		delay, _, err := EstimateDelay(sig, ref, sampleRate,
			WithFilter(FilterCC), WithMaxDelay(10.0/sampleRate))
		require.NoError(t, err)
		assert.InDelta(t, 5.0/sampleRate, delay, 1e-9)
	})
}

func TestEstimateDelayConfidence(t *testing.T) {
	const sampleRate = 8000
	ref := chirp(1000, sampleRate, 500, 1500)

	t.Run("identical signals cc", func(t *testing.T) {
		delay, ccMax, err := EstimateDelay(ref, ref, sampleRate, WithFilter(FilterCC))
		require.NoError(t, err)
		assert.Zero(t, delay)
		assert.InDelta(t, 1.0, ccMax, 1e-9)
	})

	t.Run("identical signals phat", func(t *testing.T) {
		delay, ccMax, err := EstimateDelay(ref, ref, sampleRate, WithFilter(FilterPHAT))
		require.NoError(t, err)
		assert.Zero(t, delay)
		assert.Greater(t, ccMax, 0.5)
		assert.LessOrEqual(t, ccMax, 1.0+1e-9)
	})
}

func TestEstimateDelayValidation(t *testing.T) {
	t.Run("empty signal", func(t *testing.T) {
		_, _, err := EstimateDelay(nil, []float64{1}, 8000)
		assert.Error(t, err)
	})

	t.Run("empty reference", func(t *testing.T) {
		_, _, err := EstimateDelay([]float64{1}, nil, 8000)
		assert.Error(t, err)
	})

	t.Run("bad sample rate", func(t *testing.T) {
		_, _, err := EstimateDelay([]float64{1}, []float64{1}, 0)
		assert.Error(t, err)
	})
}

func TestBandpass(t *testing.T) {
	const sampleRate = 8000
	n := sampleRate // one second

	rms := func(x []float64) float64 {
		var sum float64
		for _, v := range x {
			sum += v * v
		}
		return math.Sqrt(sum / float64(len(x)))
	}

	tone := func(freq float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
		}
		return out
	}

	t.Run("in-band tone passes", func(t *testing.T) {
		samples := tone(1000)
		before := rms(samples)
		require.NoError(t, Bandpass(samples, sampleRate, 500, 2000))
		assert.Greater(t, rms(samples), 0.5*before)
	})

	t.Run("out-of-band tone attenuated", func(t *testing.T) {
		samples := tone(100)
		before := rms(samples)
		require.NoError(t, Bandpass(samples, sampleRate, 500, 2000))
		assert.Less(t, rms(samples), 0.1*before)
	})

	t.Run("invalid ranges", func(t *testing.T) {
		samples := tone(1000)
		assert.Error(t, Bandpass(samples, 0, 500, 2000))
		assert.Error(t, Bandpass(samples, sampleRate, 2000, 500))
		assert.Error(t, Bandpass(samples, sampleRate, -100, 500))
		assert.Error(t, Bandpass(samples, sampleRate, 500, float64(sampleRate)))
	})
}

func TestEstimateDelayWithBandpass(t *testing.T) {
	const sampleRate = 8000
	ref := chirp(2000, sampleRate, 600, 1400)

	// Drown the shifted copy in low-frequency interference the band
	// excludes.
	sig := delayed(ref, 8)
	for i := range sig {
		sig[i] += 3 * math.Sin(2*math.Pi*60*float64(i)/sampleRate)
	}
	sigCopy := make([]float64, len(sig))
	copy(sigCopy, sig)
	refCopy := make([]float64, len(ref))
	copy(refCopy, ref)

	filtered := make([]float64, len(ref))
	copy(filtered, ref)
	require.NoError(t, Bandpass(filtered, sampleRate, 300, 2000))

	delay, _, err := EstimateDelay(sig, filtered, sampleRate, WithBandpass(300, 2000))
	require.NoError(t, err)
	assert.InDelta(t, 8.0/sampleRate, delay, 2.0/sampleRate)

	// Options never touch the caller's slices.
	assert.Equal(t, sigCopy, sig)
	assert.Equal(t, refCopy, ref)
}
