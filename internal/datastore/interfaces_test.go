package datastore

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/errors"
)

// createDatabase opens a fresh SQLite store under a temp dir and closes
// it when the test finishes.
func createDatabase(t *testing.T, settings *conf.Settings) Interface {
	t.Helper()
	tempDir := t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = tempDir + "/test.db"

	dataStore := New(settings)
	require.NotNil(t, dataStore, "New should select the SQLite store")
	require.NoError(t, dataStore.Open(), "Failed to open database")

	t.Cleanup(func() {
		assert.NoError(t, dataStore.Close(), "Failed to close datastore")
	})
	return dataStore
}

func testRun(startedAt time.Time) *Run {
	return &Run{
		UUID:              uuid.NewString(),
		StartedAt:         startedAt,
		FinishedAt:        startedAt.Add(3 * time.Second),
		DetectionsFile:    "detections.csv",
		ReceiversFile:     "receivers.yaml",
		ReceiverCount:     4,
		Algorithm:         "gillette",
		CCFilter:          "phat",
		SpeedOfSound:      343.0,
		MaxReceiverDist:   30.0,
		MinReceivers:      3,
		CCThreshold:       0.2,
		MaxDelay:          0.1,
		ResidualThreshold: 5.0,
		Workers:           4,
		EventCount:        3,
		LocalizedCount:    2,
		RejectedCount:     1,
	}
}

func testEvent(class string, start float64) LocalizedEvent {
	return LocalizedEvent{
		UUID:          uuid.NewString(),
		Class:         class,
		Start:         start,
		Duration:      0.5,
		ReferenceFile: "a.wav",
		ReceiverCount: 4,
		X:             5.25,
		Y:             -3.5,
		Z:             1.0,
		ResidualRMS:   0.042,
		MeanCCMax:     0.87,
		SolarPhase:    "dawn",
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, &conf.Settings{})

	startedAt := time.Date(2024, 5, 12, 4, 30, 0, 0, time.UTC)
	original := testRun(startedAt)
	events := []LocalizedEvent{
		testEvent("grylloidea", 12.5),
		testEvent("grylloidea", 31.0),
	}

	require.NoError(t, ds.SaveRun(original, events), "Failed to save run")
	require.NotZero(t, original.ID, "Run ID should be assigned after save")
	for i := range events {
		assert.Equal(t, original.ID, events[i].RunID, "event %d should carry the run ID", i)
		assert.NotZero(t, events[i].ID, "event %d should have an ID after save", i)
	}

	loaded, err := ds.GetRun(fmt.Sprintf("%d", original.ID))
	require.NoError(t, err, "Failed to load run")

	assert.Equal(t, original.UUID, loaded.UUID)
	assert.True(t, original.StartedAt.Equal(loaded.StartedAt),
		"StartedAt mismatch: got %v, want %v", loaded.StartedAt, original.StartedAt)
	assert.True(t, original.FinishedAt.Equal(loaded.FinishedAt),
		"FinishedAt mismatch: got %v, want %v", loaded.FinishedAt, original.FinishedAt)
	assert.Equal(t, original.DetectionsFile, loaded.DetectionsFile)
	assert.Equal(t, original.ReceiversFile, loaded.ReceiversFile)
	assert.Equal(t, original.ReceiverCount, loaded.ReceiverCount)
	assert.Equal(t, original.Algorithm, loaded.Algorithm)
	assert.Equal(t, original.CCFilter, loaded.CCFilter)
	assert.InDelta(t, original.SpeedOfSound, loaded.SpeedOfSound, 1e-9)
	assert.InDelta(t, original.MaxReceiverDist, loaded.MaxReceiverDist, 1e-9)
	assert.Equal(t, original.MinReceivers, loaded.MinReceivers)
	assert.InDelta(t, original.CCThreshold, loaded.CCThreshold, 1e-9)
	assert.InDelta(t, original.MaxDelay, loaded.MaxDelay, 1e-9)
	assert.InDelta(t, original.ResidualThreshold, loaded.ResidualThreshold, 1e-9)
	assert.Equal(t, original.Workers, loaded.Workers)
	assert.Equal(t, original.EventCount, loaded.EventCount)
	assert.Equal(t, original.LocalizedCount, loaded.LocalizedCount)
	assert.Equal(t, original.RejectedCount, loaded.RejectedCount)
}

func TestEventRoundTrip(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, &conf.Settings{})

	run := testRun(time.Now())
	original := testEvent("orthoptera", 7.25)
	require.NoError(t, ds.SaveRun(run, []LocalizedEvent{original}))

	saved, err := ds.GetRunEvents(fmt.Sprintf("%d", run.ID), "", 0, 0)
	require.NoError(t, err)
	require.Len(t, saved, 1)

	loaded, err := ds.GetEvent(fmt.Sprintf("%d", saved[0].ID))
	require.NoError(t, err, "Failed to load event")

	assert.Equal(t, original.UUID, loaded.UUID)
	assert.Equal(t, run.ID, loaded.RunID)
	assert.Equal(t, original.Class, loaded.Class)
	assert.InDelta(t, original.Start, loaded.Start, 1e-9)
	assert.InDelta(t, original.Duration, loaded.Duration, 1e-9)
	assert.Equal(t, original.ReferenceFile, loaded.ReferenceFile)
	assert.Equal(t, original.ReceiverCount, loaded.ReceiverCount)
	assert.InDelta(t, original.X, loaded.X, 1e-9)
	assert.InDelta(t, original.Y, loaded.Y, 1e-9)
	assert.InDelta(t, original.Z, loaded.Z, 1e-9)
	assert.InDelta(t, original.ResidualRMS, loaded.ResidualRMS, 1e-9)
	assert.InDelta(t, original.MeanCCMax, loaded.MeanCCMax, 1e-9)
	assert.Equal(t, original.SolarPhase, loaded.SolarPhase)
	assert.False(t, loaded.CreatedAt.IsZero(), "CreatedAt should be set by gorm")
}

func TestGetAllRunsNewestFirst(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, &conf.Settings{})

	base := time.Date(2024, 5, 12, 4, 0, 0, 0, time.UTC)
	var uuids []string
	for i := range 3 {
		run := testRun(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, ds.SaveRun(run, nil))
		uuids = append(uuids, run.UUID)
	}

	runs, err := ds.GetAllRuns(0, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, uuids[2], runs[0].UUID, "newest run should come first")
	assert.Equal(t, uuids[0], runs[2].UUID, "oldest run should come last")

	limited, err := ds.GetAllRuns(1, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, uuids[1], limited[0].UUID)
}

func TestGetRunEventsFilterAndOrder(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, &conf.Settings{})

	run := testRun(time.Now())
	events := []LocalizedEvent{
		testEvent("gryllus", 1.0),
		testEvent("tettigonia", 2.0),
		testEvent("gryllus", 3.0),
	}
	require.NoError(t, ds.SaveRun(run, events))

	// Another run's events must not leak in.
	other := testRun(time.Now())
	require.NoError(t, ds.SaveRun(other, []LocalizedEvent{testEvent("gryllus", 9.0)}))

	runID := fmt.Sprintf("%d", run.ID)

	all, err := ds.GetRunEvents(runID, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.InDelta(t, 1.0, all[0].Start, 1e-9, "insertion order should be preserved")
	assert.InDelta(t, 3.0, all[2].Start, 1e-9)

	gryllus, err := ds.GetRunEvents(runID, "gryllus", 0, 0)
	require.NoError(t, err)
	require.Len(t, gryllus, 2)
	for _, event := range gryllus {
		assert.Equal(t, "gryllus", event.Class)
	}

	paged, err := ds.GetRunEvents(runID, "", 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "tettigonia", paged[0].Class)
}

func TestCountRunsAndEvents(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, &conf.Settings{})

	count, err := ds.CountRuns()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "fresh database should hold no runs")

	run := testRun(time.Now())
	require.NoError(t, ds.SaveRun(run, []LocalizedEvent{
		testEvent("gryllus", 1.0),
		testEvent("gryllus", 2.0),
		testEvent("tettigonia", 3.0),
	}))
	require.NoError(t, ds.SaveRun(testRun(time.Now()), nil))

	count, err = ds.CountRuns()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	runID := fmt.Sprintf("%d", run.ID)

	count, err = ds.CountRunEvents(runID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = ds.CountRunEvents(runID, "gryllus")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = ds.CountRunEvents("not-a-number", "")
	require.Error(t, err)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, &conf.Settings{})

	_, err := ds.GetRun("12345")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound),
		"missing run should unwrap to gorm.ErrRecordNotFound")

	_, err = ds.GetEvent("12345")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestGetRunInvalidID(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, &conf.Settings{})

	_, err := ds.GetRun("not-a-number")
	require.Error(t, err)

	_, err = ds.GetRunEvents("not-a-number", "", 0, 0)
	require.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	sqliteSettings := &conf.Settings{}
	sqliteSettings.Output.SQLite.Enabled = true
	_, ok := New(sqliteSettings).(*SQLiteStore)
	assert.True(t, ok, "SQLite enabled should select SQLiteStore")

	mysqlSettings := &conf.Settings{}
	mysqlSettings.Output.MySQL.Enabled = true
	_, ok = New(mysqlSettings).(*MySQLStore)
	assert.True(t, ok, "MySQL enabled should select MySQLStore")

	assert.Nil(t, New(&conf.Settings{}), "no database output should yield nil")
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	store := New(settings)
	require.Error(t, store.Open(), "empty sqlite path should fail validation")
}
