// Package models contains the federation state persisted by the server and
// the repositories which read and write it.
package models

import "gorm.io/gorm"

// AllTables returns a slice of all tables in the database.
func AllTables() []interface{} {
	return []interface{}{
		&Account{},
		&Follower{},
		&Following{},
		&CachedActor{},
		&InboxActivity{},
		&DeliveryQueueItem{},
		&Post{},
	}
}

// forEach calls each function in turn, stopping at the first error.
func forEach(tx *gorm.DB, fns ...func(*gorm.DB) error) error {
	for _, fn := range fns {
		if err := fn(tx); err != nil {
			return err
		}
	}
	return nil
}

// paginate returns a scope which selects the given 1 based page.
func paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	if page < 1 {
		page = 1
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}
