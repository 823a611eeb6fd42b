package datastore

import (
	"slices"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// DefaultSlowQueryThreshold marks queries slower than this for warning
// logs. One second accommodates migration batch queries on slow media.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger configures the GORM logger used by both backends.
// Metrics are attached later through SetMetrics, after the collectors
// exist, so the logger starts without them.
func createGormLogger() gormlogger.Interface {
	return NewGormLogger(DefaultSlowQueryThreshold, gormlogger.Warn, nil)
}

// performAutoMigration migrates the schema table by table with per-table
// change logging.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	migrationStart := time.Now()

	tables := []struct {
		model any
		name  string
	}{
		{&Run{}, "runs"},
		{&LocalizedEvent{}, "localized_events"},
	}

	for _, table := range tables {
		if err := migrateTable(db, table.model, table.name, dbType); err != nil {
			return err
		}
	}

	if debug {
		logger.Debug("database migration completed",
			"db_type", dbType,
			"connection", connectionInfo,
			"tables", len(tables),
			"total_duration", time.Since(migrationStart))
	}
	return nil
}

// migrateTable migrates a single table and logs what changed.
func migrateTable(db *gorm.DB, model any, tableName, dbType string) error {
	tableStart := time.Now()
	tableExisted := db.Migrator().HasTable(model)
	columnsBefore := tableColumns(db, model, tableExisted)

	if err := db.AutoMigrate(model); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("db_type", dbType).
			Context("table", tableName).
			Build()
	}

	action, addedColumns := tableChanges(db, model, tableExisted, columnsBefore)
	logFields := []any{
		"table", tableName,
		"action", action,
		"duration", time.Since(tableStart),
	}
	if len(addedColumns) > 0 {
		logFields = append(logFields, "columns_added", addedColumns)
	}
	logger.Debug("table migration completed", logFields...)
	return nil
}

// tableColumns lists a table's column names, or nil when it does not
// exist yet.
func tableColumns(db *gorm.DB, model any, tableExists bool) []string {
	if !tableExists {
		return nil
	}
	var columns []string
	if cols, err := db.Migrator().ColumnTypes(model); err == nil {
		for _, col := range cols {
			columns = append(columns, col.Name())
		}
	}
	return columns
}

// tableChanges reports whether the migration created, updated or left a
// table unchanged, and which columns were added.
func tableChanges(db *gorm.DB, model any, tableExisted bool, columnsBefore []string) (action string, addedColumns []string) {
	cols, err := db.Migrator().ColumnTypes(model)
	if err != nil {
		return "updated", nil
	}

	if !tableExisted {
		for _, col := range cols {
			addedColumns = append(addedColumns, col.Name())
		}
		return "created", addedColumns
	}

	for _, col := range cols {
		if !slices.Contains(columnsBefore, col.Name()) {
			addedColumns = append(addedColumns, col.Name())
		}
	}
	if len(addedColumns) == 0 {
		return "unchanged", nil
	}
	return "updated", addedColumns
}
