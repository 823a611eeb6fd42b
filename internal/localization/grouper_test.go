package localization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-array/internal/detections"
	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/geom"
)

func TestBuildNearbyIndex(t *testing.T) {
	coords := map[string]geom.Point{
		"a.wav": {0, 0},
		"b.wav": {3, 0},
		"c.wav": {10, 0},
	}

	index, err := BuildNearbyIndex(coords, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.wav"}, index["a.wav"])
	assert.Equal(t, []string{"a.wav"}, index["b.wav"])
	assert.Empty(t, index["c.wav"])

	// The grouping radius is inclusive: b and c are exactly 7 m apart.
	index, err = BuildNearbyIndex(coords, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.wav", "c.wav"}, index["b.wav"])
	assert.Equal(t, []string{"b.wav"}, index["c.wav"])
}

func TestBuildNearbyIndexValidation(t *testing.T) {
	t.Run("non-positive distance", func(t *testing.T) {
		_, err := BuildNearbyIndex(map[string]geom.Point{"a.wav": {0, 0}}, 0)
		assert.Error(t, err)
	})

	t.Run("mixed dimensions", func(t *testing.T) {
		coords := map[string]geom.Point{
			"a.wav": {0, 0},
			"b.wav": {1, 2, 3},
		}
		_, err := BuildNearbyIndex(coords, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a.wav")
		assert.Contains(t, err.Error(), "b.wav")
	})
}

func TestValidateCoordinates(t *testing.T) {
	table := detections.New("wood thrush")
	require.NoError(t, table.Add("a.wav", 0, 3, 1))
	require.NoError(t, table.Add("b.wav", 0, 3, 1))
	require.NoError(t, table.Add("c.wav", 0, 3, 0))

	t.Run("all present", func(t *testing.T) {
		coords := map[string]geom.Point{
			"a.wav": {0, 0}, "b.wav": {1, 0}, "c.wav": {2, 0},
		}
		assert.NoError(t, ValidateCoordinates(table, coords))
	})

	t.Run("names every missing file", func(t *testing.T) {
		err := ValidateCoordinates(table, map[string]geom.Point{"a.wav": {0, 0}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingCoordinates)
		assert.Contains(t, err.Error(), "b.wav")
		assert.Contains(t, err.Error(), "c.wav")
	})
}

func squareDetections(t *testing.T) (*detections.Table, map[string]geom.Point) {
	t.Helper()
	table := detections.New("wood thrush")
	require.NoError(t, table.Add("a.wav", 0, 3, 0.9))
	require.NoError(t, table.Add("b.wav", 0, 3, 0.8))
	require.NoError(t, table.Add("c.wav", 0, 3, 0.7))
	require.NoError(t, table.Add("d.wav", 0, 3, 0.6))
	coords := map[string]geom.Point{
		"a.wav": {0, 0},
		"b.wav": {10, 0},
		"c.wav": {0, 10},
		"d.wav": {10, 10},
	}
	return table, coords
}

func TestGroupDetectionsRedundancy(t *testing.T) {
	table, coords := squareDetections(t)
	nearby, err := BuildNearbyIndex(coords, 20)
	require.NoError(t, err)

	events, err := GroupDetections(table, coords, nearby, 3)
	require.NoError(t, err)
	require.Len(t, events, 4)

	// One event per reference receiver, in detection row order, each
	// listing the other three as co-detectors.
	wantRefs := []string{"a.wav", "b.wav", "c.wav", "d.wav"}
	for i, event := range events {
		assert.Equal(t, StateCreated, event.State)
		assert.Equal(t, "wood thrush", event.Class)
		assert.Equal(t, wantRefs[i], event.ReceiverFiles[0])
		assert.Len(t, event.ReceiverFiles, 4)
		assert.Equal(t, 0.0, event.Start)
		assert.Equal(t, 3.0, event.Duration)
		require.Len(t, event.Positions, 4)
		for j, file := range event.ReceiverFiles {
			assert.Equal(t, coords[file], event.Positions[j])
		}
	}

	// Positions are copies; mutating an event must not corrupt the
	// shared coordinate table.
	events[0].Positions[0][0] = 99
	assert.Equal(t, geom.Point{0, 0}, coords["a.wav"])
}

func TestGroupDetectionsMinReceivers(t *testing.T) {
	table := detections.New("wood thrush")
	require.NoError(t, table.Add("a.wav", 0, 3, 1))
	require.NoError(t, table.Add("b.wav", 0, 3, 1))
	require.NoError(t, table.Add("c.wav", 0, 3, 0))
	coords := map[string]geom.Point{
		"a.wav": {0, 0}, "b.wav": {5, 0}, "c.wav": {0, 5},
	}
	nearby, err := BuildNearbyIndex(coords, 20)
	require.NoError(t, err)

	events, err := GroupDetections(table, coords, nearby, 3)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = GroupDetections(table, coords, nearby, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestGroupDetectionsExcludesOutOfRange(t *testing.T) {
	table, coords := squareDetections(t)
	coords["d.wav"] = geom.Point{500, 500}

	nearby, err := BuildNearbyIndex(coords, 20)
	require.NoError(t, err)

	events, err := GroupDetections(table, coords, nearby, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, event := range events {
		assert.Len(t, event.ReceiverFiles, 3)
		assert.NotContains(t, event.ReceiverFiles, "d.wav")
	}
}

func TestGroupDetectionsOrdering(t *testing.T) {
	// Rows added with start 3 before start 0; grouping still walks starts
	// ascending, classes in column order, references in row order.
	table := detections.New("wood thrush", "ovenbird")
	require.NoError(t, table.Add("a.wav", 3, 6, 1, 1))
	require.NoError(t, table.Add("b.wav", 3, 6, 1, 1))
	require.NoError(t, table.Add("a.wav", 0, 3, 1, 1))
	require.NoError(t, table.Add("b.wav", 0, 2.5, 1, 1))

	coords := map[string]geom.Point{"a.wav": {0, 0}, "b.wav": {5, 0}}
	nearby, err := BuildNearbyIndex(coords, 20)
	require.NoError(t, err)

	events, err := GroupDetections(table, coords, nearby, 2)
	require.NoError(t, err)
	require.Len(t, events, 8)

	type key struct {
		class string
		start float64
		ref   string
	}
	var got []key
	for _, event := range events {
		got = append(got, key{event.Class, event.Start, event.ReceiverFiles[0]})
	}
	want := []key{
		{"wood thrush", 0, "a.wav"},
		{"wood thrush", 0, "b.wav"},
		{"wood thrush", 3, "a.wav"},
		{"wood thrush", 3, "b.wav"},
		{"ovenbird", 0, "a.wav"},
		{"ovenbird", 0, "b.wav"},
		{"ovenbird", 3, "a.wav"},
		{"ovenbird", 3, "b.wav"},
	}
	assert.Equal(t, want, got)

	// Clip duration comes from the reference receiver's own row.
	assert.Equal(t, 3.0, events[0].Duration)
	assert.Equal(t, 2.5, events[1].Duration)
}

func TestGroupDetectionsValidation(t *testing.T) {
	table, coords := squareDetections(t)
	nearby, err := BuildNearbyIndex(coords, 20)
	require.NoError(t, err)

	t.Run("min receivers below two", func(t *testing.T) {
		_, err := GroupDetections(table, coords, nearby, 1)
		assert.Error(t, err)
	})

	t.Run("missing coordinates fail before grouping", func(t *testing.T) {
		short := map[string]geom.Point{"a.wav": {0, 0}}
		_, err := GroupDetections(table, short, nearby, 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingCoordinates))
	})
}
