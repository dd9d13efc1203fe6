//go:build !sqlite

package main

import (
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// mysqlOptions are required for the queue and inbox time comparisons,
// which assume UTC DATETIME columns.
const mysqlOptions = "charset=utf8mb4&parseTime=True&loc=UTC"

func newDialector(dsn string) gorm.Dialector {
	return mysql.New(mysql.Config{
		DSN: mergeOptions(dsn, mysqlOptions),
	})
}

// mergeOptions adds each key=value in options to dsn unless dsn
// already sets that key.
func mergeOptions(dsn, options string) string {
	present := make(map[string]bool)
	if _, query, ok := strings.Cut(dsn, "?"); ok {
		for _, kv := range strings.Split(query, "&") {
			k, _, _ := strings.Cut(kv, "=")
			present[k] = true
		}
	}
	for _, kv := range strings.Split(options, "&") {
		k, _, _ := strings.Cut(kv, "=")
		if k == "" || present[k] {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + kv
		} else {
			dsn += "?" + kv
		}
	}
	return dsn
}

func configureDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	// the http server, the delivery drain and the sync worker share the pool.
	sqlDB.SetMaxOpenConns(32)
	sqlDB.SetMaxIdleConns(8)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}
