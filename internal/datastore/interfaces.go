// interfaces.go: store interface and the operations shared by both backends.
package datastore

import (
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/errors"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	SetMetrics(m *Metrics)
	SaveRun(run *Run, events []LocalizedEvent) error
	GetRun(id string) (Run, error)
	GetAllRuns(limit, offset int) ([]Run, error)
	CountRuns() (int64, error)
	GetRunEvents(runID, class string, limit, offset int) ([]LocalizedEvent, error)
	CountRunEvents(runID, class string) (int64, error)
	GetEvent(id string) (LocalizedEvent, error)
}

// DataStore implements the shared operations on a GORM handle. The
// concrete stores embed it and provide Open.
type DataStore struct {
	DB *gorm.DB

	metricsMu sync.RWMutex
	metrics   *Metrics
}

// New returns the store selected by the output settings, or nil when no
// database output is enabled.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// SetMetrics wires the datastore metrics collector. Safe to call
// concurrently with store operations; nil disables recording.
func (ds *DataStore) SetMetrics(m *Metrics) {
	ds.metricsMu.Lock()
	defer ds.metricsMu.Unlock()
	ds.metrics = m
}

func (ds *DataStore) getMetrics() *Metrics {
	ds.metricsMu.RLock()
	defer ds.metricsMu.RUnlock()
	return ds.metrics
}

// Close releases the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return errors.Newf("getting database handle: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Newf("closing database: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// SaveRun stores a run and its localized events as a single transaction.
// Events are passed separately and get their RunID assigned here; leave
// run.Events nil to avoid double inserts through the association.
func (ds *DataStore) SaveRun(run *Run, events []LocalizedEvent) error {
	start := time.Now()

	tx := ds.DB.Begin()
	if tx.Error != nil {
		return errors.Newf("starting transaction: %w", tx.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	// Roll back if anything below panics.
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.Create(run).Error; err != nil {
		tx.Rollback()
		ds.recordTransaction("save_run", "rollback", start)
		return errors.Newf("saving run %s: %w", run.UUID, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("run_uuid", run.UUID).
			Build()
	}

	for i := range events {
		events[i].RunID = run.ID
		if err := tx.Create(&events[i]).Error; err != nil {
			tx.Rollback()
			ds.recordTransaction("save_run", "rollback", start)
			return errors.Newf("saving event %s: %w", events[i].UUID, err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("run_uuid", run.UUID).
				Context("event_uuid", events[i].UUID).
				Build()
		}
	}

	if err := tx.Commit().Error; err != nil {
		ds.recordTransaction("save_run", "rollback", start)
		return errors.Newf("committing transaction: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("run_uuid", run.UUID).
			Build()
	}

	ds.recordTransaction("save_run", "committed", start)
	logger.Debug("run saved",
		"run_uuid", run.UUID,
		"events", len(events),
		"duration", time.Since(start))
	return nil
}

func (ds *DataStore) recordTransaction(operation, status string, start time.Time) {
	if m := ds.getMetrics(); m != nil {
		m.RecordTransaction(status)
		m.RecordTransactionDuration(operation, time.Since(start).Seconds())
	}
}

// GetRun retrieves a run by its numeric ID.
func (ds *DataStore) GetRun(id string) (Run, error) {
	runID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return Run{}, errors.Newf("converting run ID %q: %w", id, err).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	var run Run
	if err := ds.DB.First(&run, runID).Error; err != nil {
		return Run{}, errors.Newf("getting run %d: %w", runID, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("run_id", runID).
			Build()
	}
	return run, nil
}

// GetAllRuns retrieves runs newest first. limit <= 0 means no limit.
func (ds *DataStore) GetAllRuns(limit, offset int) ([]Run, error) {
	query := ds.DB.Order("started_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var runs []Run
	if err := query.Find(&runs).Error; err != nil {
		return nil, errors.Newf("getting runs: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return runs, nil
}

// CountRuns returns the total number of stored runs.
func (ds *DataStore) CountRuns() (int64, error) {
	var count int64
	if err := ds.DB.Model(&Run{}).Count(&count).Error; err != nil {
		return 0, errors.Newf("counting runs: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return count, nil
}

// GetRunEvents retrieves a run's localized events in insertion order,
// which is the pipeline's emission order. class filters when non-empty;
// limit <= 0 means no limit.
func (ds *DataStore) GetRunEvents(runID, class string, limit, offset int) ([]LocalizedEvent, error) {
	id, err := strconv.ParseUint(runID, 10, 32)
	if err != nil {
		return nil, errors.Newf("converting run ID %q: %w", runID, err).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	query := ds.DB.Where("run_id = ?", id).Order("id")
	if class != "" {
		query = query.Where("class = ?", class)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var events []LocalizedEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, errors.Newf("getting events for run %d: %w", id, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("run_id", id).
			Build()
	}
	return events, nil
}

// CountRunEvents returns the number of events stored for a run, optionally
// filtered by class.
func (ds *DataStore) CountRunEvents(runID, class string) (int64, error) {
	id, err := strconv.ParseUint(runID, 10, 32)
	if err != nil {
		return 0, errors.Newf("converting run ID %q: %w", runID, err).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	query := ds.DB.Model(&LocalizedEvent{}).Where("run_id = ?", id)
	if class != "" {
		query = query.Where("class = ?", class)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, errors.Newf("counting events for run %d: %w", id, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("run_id", id).
			Build()
	}
	return count, nil
}

// GetEvent retrieves a localized event by its numeric ID.
func (ds *DataStore) GetEvent(id string) (LocalizedEvent, error) {
	eventID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return LocalizedEvent{}, errors.Newf("converting event ID %q: %w", id, err).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	var event LocalizedEvent
	if err := ds.DB.First(&event, eventID).Error; err != nil {
		return LocalizedEvent{}, errors.Newf("getting event %d: %w", eventID, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("event_id", eventID).
			Build()
	}
	return event, nil
}
