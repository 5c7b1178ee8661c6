package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDatabase opens the conversation database for the configured driver.
// The schema is not touched here; run sqldb.Migrate afterwards.
func OpenDatabase(c Config, log *logrus.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: newGormLogger(log), TranslateError: true}

	switch c.DBDriver {
	case "postgres":
		if c.PostgresURI == "" {
			return nil, errors.New("POSTGRES_URI environment variable is not set")
		}
		db, err := gorm.Open(postgres.Open(c.PostgresURI), gcfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}

		// Connection Pooling settings
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		return db, nil

	default:
		return OpenSQLite(c.DBPath, gcfg)
	}
}

// OpenSQLite opens a single-file database. One open connection serialises
// writers so concurrent requests never see SQLITE_BUSY.
func OpenSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.New("DB_PATH is empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if gcfg == nil {
		gcfg = &gorm.Config{Logger: gormlogger.Discard, TranslateError: true}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return db, nil
}

func newGormLogger(log *logrus.Logger) gormlogger.Interface {
	if log == nil {
		return gormlogger.Discard
	}
	level := gormlogger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}
	return gormlogger.New(log.WithField("component", "gorm"), gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
