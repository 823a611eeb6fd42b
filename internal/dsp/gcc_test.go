package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// chirp sweeps a sine from f0 to f1 Hz over n samples. The sweep has a
// sharp autocorrelation, so correlation peaks are unambiguous.
func chirp(n, sampleRate int, f0, f1 float64) []float64 {
	out := make([]float64, n)
	dur := float64(n) / float64(sampleRate)
	rate := (f1 - f0) / dur
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = math.Sin(2 * math.Pi * (f0*t + 0.5*rate*t*t))
	}
	return out
}

// delayed returns src shifted by shift samples (positive delays, negative
// advances), zero-filled and truncated to the original length.
func delayed(src []float64, shift int) []float64 {
	out := make([]float64, len(src))
	for i := range out {
		j := i - shift
		if j >= 0 && j < len(src) {
			out[i] = src[j]
		}
	}
	return out
}

// directCorrelation is the O(n*m) definition the FFT path must match:
// c[lag] = sum over j of x[j+lag]*y[j].
func directCorrelation(x, y []float64) []float64 {
	out := make([]float64, len(x)+len(y)-1)
	for i := range out {
		lag := i - (len(y) - 1)
		var sum float64
		for j := range y {
			k := j + lag
			if k >= 0 && k < len(x) {
				sum += x[k] * y[j]
			}
		}
		out[i] = sum
	}
	return out
}

func TestLags(t *testing.T) {
	tests := []struct {
		name   string
		nx, ny int
		want   []int
	}{
		{"unequal lengths", 4, 3, []int{-2, -1, 0, 1, 2, 3}},
		{"single samples", 1, 1, []int{0}},
		{"unit reference", 3, 1, []int{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lags(tt.nx, tt.ny))
		})
	}

	t.Run("nonpositive lengths", func(t *testing.T) {
		assert.Nil(t, Lags(0, 3))
		assert.Nil(t, Lags(3, -1))
	})
}

func TestParseCCFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    CCFilter
		wantErr bool
	}{
		{"phat", FilterPHAT, false},
		{"cc", FilterCC, false},
		{"roth", "", true},
		{"", "", true},
		{"PHAT", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCCFilter(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownFilter))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGCCMatchesDirectCorrelation(t *testing.T) {
	t.Run("equal lengths", func(t *testing.T) {
		x := chirp(64, 8000, 200, 1500)
		y := chirp(64, 8000, 350, 900)

		got, err := GCC(x, y, FilterCC)
		require.NoError(t, err)
		assert.InDeltaSlice(t, directCorrelation(x, y), got, 1e-9)
	})

	t.Run("unequal lengths", func(t *testing.T) {
		x := chirp(80, 8000, 500, 2000)
		y := chirp(33, 8000, 100, 700)

		got, err := GCC(x, y, FilterCC)
		require.NoError(t, err)
		require.Len(t, got, 80+33-1)
		assert.InDeltaSlice(t, directCorrelation(x, y), got, 1e-9)
	})
}

func TestGCCPeakAtShift(t *testing.T) {
	ref := make([]float64, 200)
	ref[100] = 1
	sig := make([]float64, 200)
	sig[105] = 1

	cc, err := GCC(sig, ref, FilterCC)
	require.NoError(t, err)

	lags := Lags(len(sig), len(ref))
	best := 0
	for i := range cc {
		if cc[i] > cc[best] {
			best = i
		}
	}
	assert.Equal(t, 5, lags[best])
}

func TestGCCPHATPeakAtShift(t *testing.T) {
	ref := chirp(1024, 8000, 400, 1600)
	sig := delayed(ref, 17)

	cc, err := GCC(sig, ref, FilterPHAT)
	require.NoError(t, err)

	lags := Lags(len(sig), len(ref))
	best := 0
	for i := range cc {
		if cc[i] > cc[best] {
			best = i
		}
	}
	assert.Equal(t, 17, lags[best])
	// Whitening concentrates a pure delay into a near-unit impulse.
	assert.Greater(t, cc[best], 0.5)
}

func TestGCCValidation(t *testing.T) {
	t.Run("empty x", func(t *testing.T) {
		_, err := GCC(nil, []float64{1}, FilterPHAT)
		assert.Error(t, err)
	})

	t.Run("empty y", func(t *testing.T) {
		_, err := GCC([]float64{1}, nil, FilterPHAT)
		assert.Error(t, err)
	})

	t.Run("unknown filter", func(t *testing.T) {
		_, err := GCC([]float64{1, 2}, []float64{1, 2}, CCFilter("scot"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownFilter))
	})
}
