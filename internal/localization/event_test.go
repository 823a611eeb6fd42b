package localization

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-array/internal/geom"
	"github.com/tphakala/birdnet-array/internal/myaudio"
)

const eventSampleRate = 8000

// eventChirp is a 0.2 s sweep from 400 to 1600 Hz, loud enough to
// dominate 16-bit quantization noise.
func eventChirp() []float64 {
	n := eventSampleRate / 5
	out := make([]float64, n)
	total := float64(n) / eventSampleRate
	for i := range out {
		ts := float64(i) / eventSampleRate
		f := 400 + (1600-400)*ts/(2*total)
		out[i] = 0.8 * math.Sin(2*math.Pi*f*ts)
	}
	return out
}

// writeReceiverWAV writes a 2 s mono file containing chirp at the given
// sample offset and returns its path.
func writeReceiverWAV(t *testing.T, dir, name string, chirpAt int, sampleRate int) string {
	t.Helper()
	samples := make([]float64, 2*sampleRate)
	copy(samples[chirpAt:], eventChirp())
	path := filepath.Join(dir, name)
	require.NoError(t, myaudio.WriteWAV(path, samples, sampleRate))
	return path
}

func squarePositions() []geom.Point {
	return []geom.Point{{0, 0}, {10, 0}, {0, 10}, {10, 10}}
}

func TestEventEstimateDelays(t *testing.T) {
	dir := t.TempDir()
	ref := writeReceiverWAV(t, dir, "ref.wav", 8000, eventSampleRate)
	late := writeReceiverWAV(t, dir, "late.wav", 8005, eventSampleRate)
	early := writeReceiverWAV(t, dir, "early.wav", 7997, eventSampleRate)

	event := NewEvent("wood thrush",
		[]string{ref, late, early},
		[]geom.Point{{0, 0}, {10, 0}, {0, 10}},
		0.9, 0.4)

	require.NoError(t, event.EstimateDelays(DelayParams{Source: &myaudio.FileLoader{}}))

	assert.Equal(t, StateDelaysEstimated, event.State)
	require.Len(t, event.TDOAs, 3)
	assert.Equal(t, 0.0, event.TDOAs[0])
	assert.Equal(t, 1.0, event.CCMaxs[0])
	assert.InDelta(t, 5.0/eventSampleRate, event.TDOAs[1], 1e-9)
	assert.InDelta(t, -3.0/eventSampleRate, event.TDOAs[2], 1e-9)
	assert.Greater(t, event.CCMaxs[1], 0.5)
	assert.Greater(t, event.CCMaxs[2], 0.5)
}

func TestEventEstimateDelaysWithBandpass(t *testing.T) {
	dir := t.TempDir()
	ref := writeReceiverWAV(t, dir, "ref.wav", 8000, eventSampleRate)
	late := writeReceiverWAV(t, dir, "late.wav", 8008, eventSampleRate)

	event := NewEvent("wood thrush",
		[]string{ref, late},
		[]geom.Point{{0, 0}, {10, 0}},
		0.9, 0.4)

	err := event.EstimateDelays(DelayParams{
		Source:   &myaudio.FileLoader{},
		Bandpass: &BandpassRange{Low: 300, High: 2000},
	})
	require.NoError(t, err)
	assert.Equal(t, StateDelaysEstimated, event.State)
	assert.InDelta(t, 8.0/eventSampleRate, event.TDOAs[1], 2.0/eventSampleRate)
}

func TestEventEstimateDelaysMissingFile(t *testing.T) {
	dir := t.TempDir()
	ref := writeReceiverWAV(t, dir, "ref.wav", 8000, eventSampleRate)

	event := NewEvent("wood thrush",
		[]string{ref, filepath.Join(dir, "absent.wav")},
		[]geom.Point{{0, 0}, {10, 0}},
		0.9, 0.4)

	err := event.EstimateDelays(DelayParams{Source: &myaudio.FileLoader{}})
	require.Error(t, err)
	assert.Equal(t, StateRejectedPreprocessing, event.State)
	assert.Error(t, event.Err)
	assert.Nil(t, event.TDOAs)
}

func TestEventEstimateDelaysSampleRateMismatch(t *testing.T) {
	dir := t.TempDir()
	ref := writeReceiverWAV(t, dir, "ref.wav", 8000, eventSampleRate)
	other := writeReceiverWAV(t, dir, "other.wav", 16000, 2*eventSampleRate)

	event := NewEvent("wood thrush",
		[]string{ref, other},
		[]geom.Point{{0, 0}, {10, 0}},
		0.9, 0.4)

	err := event.EstimateDelays(DelayParams{Source: &myaudio.FileLoader{}})
	require.Error(t, err)
	assert.Equal(t, StateRejectedPreprocessing, event.State)
}

func TestEventEstimateDelaysStateGuard(t *testing.T) {
	dir := t.TempDir()
	ref := writeReceiverWAV(t, dir, "ref.wav", 8000, eventSampleRate)
	other := writeReceiverWAV(t, dir, "other.wav", 8005, eventSampleRate)

	event := NewEvent("wood thrush",
		[]string{ref, other},
		[]geom.Point{{0, 0}, {10, 0}},
		0.9, 0.4)

	require.NoError(t, event.EstimateDelays(DelayParams{Source: &myaudio.FileLoader{}}))

	err := event.EstimateDelays(DelayParams{Source: &myaudio.FileLoader{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEventState)
	assert.Equal(t, StateDelaysEstimated, event.State)
}

func TestEventEstimateDelaysRequiresSource(t *testing.T) {
	event := NewEvent("wood thrush",
		[]string{"a.wav", "b.wav"},
		[]geom.Point{{0, 0}, {10, 0}},
		0, 3)

	err := event.EstimateDelays(DelayParams{})
	require.Error(t, err)
	assert.Equal(t, StateCreated, event.State)
}

// delaysEstimatedEvent builds an event as if EstimateDelays had already
// run, so location logic can be tested without audio.
func delaysEstimatedEvent(positions []geom.Point, tdoas, ccMaxs []float64) *Event {
	files := make([]string, len(positions))
	for i := range files {
		files[i] = string(rune('a'+i)) + ".wav"
	}
	event := NewEvent("wood thrush", files, positions, 0, 3)
	event.TDOAs = tdoas
	event.CCMaxs = ccMaxs
	event.State = StateDelaysEstimated
	return event
}

func TestEventEstimateLocationLocalized(t *testing.T) {
	event := delaysEstimatedEvent(squarePositions(),
		[]float64{0, 0, 0, 0},
		[]float64{1, 1, 1, 1})

	err := event.EstimateLocation(LocationParams{
		Algorithm:         AlgorithmGillette,
		CCThreshold:       0.25,
		MinReceivers:      3,
		ResidualThreshold: 0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, StateLocalized, event.State)
	require.Len(t, event.Estimate, 2)
	assert.InDelta(t, 5, event.Estimate[0], 1e-3)
	assert.InDelta(t, 5, event.Estimate[1], 1e-3)
	assert.Len(t, event.Residuals, 4)
	assert.InDelta(t, 0, event.ResidualRMS, 1e-6)
}

func TestEventEstimateLocationInsufficientReceivers(t *testing.T) {
	event := delaysEstimatedEvent(squarePositions(),
		[]float64{0, 0, 0, 0},
		[]float64{1, 0.9, 0.8, 0.3})

	err := event.EstimateLocation(LocationParams{
		Algorithm:    AlgorithmGillette,
		CCThreshold:  0.5,
		MinReceivers: 4,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientReceivers)
	assert.Equal(t, StateRejectedInsufficientReceivers, event.State)
	assert.Nil(t, event.Estimate)
	assert.Error(t, event.Err)
}

func TestEventEstimateLocationThresholdIsStrict(t *testing.T) {
	// A confidence exactly at the threshold does not survive.
	event := delaysEstimatedEvent(squarePositions(),
		[]float64{0, 0, 0, 0},
		[]float64{1, 0.5, 0.9, 0.9})

	err := event.EstimateLocation(LocationParams{
		Algorithm:    AlgorithmGillette,
		CCThreshold:  0.5,
		MinReceivers: 4,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientReceivers)
}

func TestEventEstimateLocationSurvivorsOnlySolve(t *testing.T) {
	// The weak fourth receiver is excluded from the solve but still
	// contributes a residual.
	event := delaysEstimatedEvent(squarePositions(),
		[]float64{0, 0, 0, 0.02},
		[]float64{1, 1, 1, 0.1})

	err := event.EstimateLocation(LocationParams{
		Algorithm:    AlgorithmGillette,
		CCThreshold:  0.25,
		MinReceivers: 3,
	})
	require.NoError(t, err)
	assert.InDelta(t, 5, event.Estimate[0], 1e-3)
	assert.InDelta(t, 5, event.Estimate[1], 1e-3)
	require.Len(t, event.Residuals, 4)
	assert.InDelta(t, 0, event.Residuals[1], 1e-6)
	assert.Greater(t, math.Abs(event.Residuals[3]), 1.0)
}

func TestEventEstimateLocationResidualTooHigh(t *testing.T) {
	event := delaysEstimatedEvent(squarePositions(),
		[]float64{0, 0.01, -0.02, 0.005},
		[]float64{1, 1, 1, 1})

	err := event.EstimateLocation(LocationParams{
		Algorithm:         AlgorithmGillette,
		CCThreshold:       0.25,
		MinReceivers:      3,
		ResidualThreshold: 1e-9,
	})
	require.NoError(t, err)
	assert.Equal(t, StateRejectedResidualTooHigh, event.State)
	assert.NotNil(t, event.Estimate)
	assert.GreaterOrEqual(t, event.ResidualRMS, 1e-9)
}

func TestEventEstimateLocationNaNNeverPasses(t *testing.T) {
	// Colinear receivers make SoundFinder return NaN; even an unlimited
	// residual threshold must reject it.
	event := delaysEstimatedEvent(
		[]geom.Point{{0, 0}, {5, 0}, {10, 0}},
		[]float64{0, 0.001, 0.002},
		[]float64{1, 1, 1})

	err := event.EstimateLocation(LocationParams{
		Algorithm:    AlgorithmSoundFinder,
		CCThreshold:  0.25,
		MinReceivers: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, StateRejectedResidualTooHigh, event.State)
	assert.True(t, math.IsNaN(event.ResidualRMS))
}

func TestEventEstimateLocationStateGuard(t *testing.T) {
	event := NewEvent("wood thrush", []string{"a.wav"}, []geom.Point{{0, 0}}, 0, 3)

	err := event.EstimateLocation(LocationParams{Algorithm: AlgorithmGillette})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEventState)
	assert.Equal(t, StateCreated, event.State)
}
