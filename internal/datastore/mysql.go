package datastore

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/errors"
)

// MySQLStore implements the datastore on a MySQL database.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	mysqlConf := settings.Output.MySQL
	if mysqlConf.Host == "" || mysqlConf.Database == "" || mysqlConf.Username == "" {
		return errors.Newf("mysql output requires host, database and username").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Open initializes the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	// Build the DSN through mysql.Config for proper credential escaping.
	mysqlConf := store.Settings.Output.MySQL
	cfg := mysql.Config{
		User:   mysqlConf.Username,
		Passwd: mysqlConf.Password,
		Net:    "tcp",
		Addr:   fmt.Sprintf("%s:%s", mysqlConf.Host, mysqlConf.Port),
		DBName: mysqlConf.Database,
		Params: map[string]string{
			"charset":   "utf8mb4",
			"parseTime": "True",
			"loc":       "Local",
		},
	}

	db, err := gorm.Open(gormmysql.Open(cfg.FormatDSN()), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return errors.Newf("opening mysql database: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("host", mysqlConf.Host).
			Context("database", mysqlConf.Database).
			Build()
	}

	store.DB = db
	logger.Info("mysql database opened",
		"host", mysqlConf.Host,
		"database", mysqlConf.Database)

	// Migration logs must not leak credentials, so pass host/database
	// instead of the DSN.
	return performAutoMigration(db, store.Settings.Debug, "MySQL",
		fmt.Sprintf("%s/%s", mysqlConf.Host, mysqlConf.Database))
}
