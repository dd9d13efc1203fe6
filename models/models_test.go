package models

import (
	"testing"

	"github.com/davecheney/fedipub/internal/crypto"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockAccount creates a new local account in the database.
func MockAccount(t *testing.T, tx *gorm.DB, handle string) *Account {
	t.Helper()
	require := require.New(t)

	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)

	account := &Account{
		Handle:       handle,
		Name:         handle,
		PublicKey:    string(kp.PublicKey),
		Discoverable: true,
	}
	require.NoError(NewAccounts(tx).Save(account))
	return account
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	require := require.New(t)
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger: logger.Default.LogMode(func() logger.LogLevel {
			return logger.Warn
		}()),
	})
	require.NoError(err)

	err = db.AutoMigrate(AllTables()...)
	require.NoError(err)

	return db
}
