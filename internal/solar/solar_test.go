package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mid-latitude observer near the prime meridian keeps all four phase
// boundaries well separated and on the same UTC date.
const (
	testLat = 47.0
	testLon = 2.0
)

func TestPhaseAtBoundaries(t *testing.T) {
	t.Parallel()

	c := NewCalculator(testLat, testLon)
	date := time.Date(2025, 3, 21, 12, 0, 0, 0, time.UTC)

	times, err := c.SunTimes(date)
	require.NoError(t, err)
	require.True(t, times.Dawn.Before(times.Sunrise))
	require.True(t, times.Sunrise.Before(times.Sunset))
	require.True(t, times.Sunset.Before(times.Dusk))

	tests := []struct {
		name string
		at   time.Time
		want Phase
	}{
		{"before civil dawn", times.Dawn.Add(-10 * time.Minute), PhaseNight},
		{"after civil dawn", times.Dawn.Add(10 * time.Minute), PhaseDawn},
		{"after sunrise", times.Sunrise.Add(10 * time.Minute), PhaseDay},
		{"midday", date, PhaseDay},
		{"after sunset", times.Sunset.Add(10 * time.Minute), PhaseDusk},
		{"after civil dusk", times.Dusk.Add(10 * time.Minute), PhaseNight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			phase, err := c.PhaseAt(tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, phase)
		})
	}
}

func TestPhaseAtCachesPerDate(t *testing.T) {
	t.Parallel()

	c := NewCalculator(testLat, testLon)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := c.SunTimes(at)
	require.NoError(t, err)
	second, err := c.SunTimes(at.Add(3 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, second, "same date resolves from cache")
}

func TestPhaseAtPolarSummer(t *testing.T) {
	t.Parallel()

	// Midnight sun: no sunset or twilight boundary exists on this date.
	c := NewCalculator(89.9, 0)
	_, err := c.PhaseAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.Error(t, err)
}
