package simulate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/detections"
	"github.com/tphakala/birdnet-array/internal/geom"
	"github.com/tphakala/birdnet-array/internal/localization"
	"github.com/tphakala/birdnet-array/internal/myaudio"
)

func TestReceiverPositionsSquare(t *testing.T) {
	t.Parallel()

	positions := receiverPositions(4)
	want := []geom.Point{{10, 10}, {0, 10}, {0, 0}, {10, 0}}
	require.Len(t, positions, 4)
	for i := range want {
		assert.InDelta(t, want[i][0], positions[i][0], 1e-9)
		assert.InDelta(t, want[i][1], positions[i][1], 1e-9)
	}
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	point, err := parseSource("5,5")
	require.NoError(t, err)
	assert.Equal(t, geom.Point{5, 5}, point)

	point, err = parseSource(" 6.5 , -2 ")
	require.NoError(t, err)
	assert.Equal(t, geom.Point{6.5, -2}, point)

	for _, spec := range []string{"", "5", "1,2,3", "a,b"} {
		_, err := parseSource(spec)
		assert.Error(t, err, "spec %q", spec)
	}
}

func TestRunSimulateValidation(t *testing.T) {
	t.Parallel()

	t.Run("too few receivers", func(t *testing.T) {
		params := &scenarioParams{outDir: t.TempDir(), receivers: 2, source: geom.Point{5, 5}, speedOfSound: 343}
		assert.Error(t, runSimulate(params))
	})

	t.Run("source beyond the clip", func(t *testing.T) {
		params := &scenarioParams{outDir: t.TempDir(), receivers: 4, source: geom.Point{2000, 2000}, speedOfSound: 343}
		err := runSimulate(params)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after the clip ends")
	})
}

// TestScenarioRoundTrip feeds a generated scenario back through the
// localization pipeline and expects the known source position back.
func TestScenarioRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	params := &scenarioParams{
		outDir:       dir,
		receivers:    4,
		noise:        0.02,
		seed:         1,
		source:       geom.Point{6, 4},
		speedOfSound: 343,
	}
	require.NoError(t, runSimulate(params))

	coords, err := conf.LoadReceivers(filepath.Join(dir, "receivers.yaml"))
	require.NoError(t, err)
	require.Len(t, coords, 4)

	table, err := detections.Load(filepath.Join(dir, "detections.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{className}, table.Classes())
	require.Equal(t, 4, table.Len())

	array, err := localization.NewArray(coords, &myaudio.DirLoader{Dir: dir})
	require.NoError(t, err)

	opts := localization.Options{
		MaxReceiverDist: 30,
		MinReceivers:    3,
		Algorithm:       localization.AlgorithmGillette,
		CCThreshold:     0.2,
		SpeedOfSound:    343,
	}
	localized, unlocalized, err := array.LocalizeDetections(context.Background(), table, opts)
	require.NoError(t, err)
	assert.Empty(t, unlocalized)
	require.Len(t, localized, 4)

	// Sample-grid rounding bounds how exactly the delays can come back.
	for _, event := range localized {
		require.Len(t, event.Estimate, 2)
		assert.InDelta(t, params.source[0], event.Estimate[0], 0.25)
		assert.InDelta(t, params.source[1], event.Estimate[1], 0.25)
	}
}
