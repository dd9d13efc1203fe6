//go:build sqlite

package main

// sqlite support

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newDialector(dsn string) gorm.Dialector {
	return &sqlite.Dialector{
		DSN: dsn,
	}
}

func configureDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	// sqlite serialises writers, queue drains and inbox writes share one connection
	sqlDB.SetMaxOpenConns(1)
	return db.Exec("PRAGMA journal_mode = WAL").Error
}
