package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// An Account is a local actor. Its private key is not stored here,
// it is held by the server's key store.
type Account struct {
	Handle                    string `gorm:"primarykey;size:64"`
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
	Name                      string         `gorm:"size:255;not null"`
	Summary                   string         `gorm:"type:text"`
	IconURL                   string         `gorm:"size:255"`
	ImageURL                  string         `gorm:"size:255"`
	PublicKey                 string         `gorm:"type:text;not null"`
	ManuallyApprovesFollowers bool           `gorm:"not null"`
	Discoverable              bool           `gorm:"not null"`
	Fields                    []ProfileField `gorm:"serializer:json"`
}

// A ProfileField is a name/value pair shown on an actor's profile.
type ProfileField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Accounts struct {
	db *gorm.DB
}

func NewAccounts(db *gorm.DB) *Accounts {
	return &Accounts{db: db}
}

// Find returns the account for handle, or gorm.ErrRecordNotFound.
func (a *Accounts) Find(handle string) (*Account, error) {
	var account Account
	if err := a.db.Take(&account, "handle = ?", handle).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// All returns every account ordered by handle.
func (a *Accounts) All() ([]*Account, error) {
	var accounts []*Account
	return accounts, a.db.Order("handle").Find(&accounts).Error
}

// Handles returns the handle of every account.
func (a *Accounts) Handles() ([]string, error) {
	var handles []string
	return handles, a.db.Model(&Account{}).Order("handle").Pluck("handle", &handles).Error
}

func (a *Accounts) Count() (int64, error) {
	var count int64
	return count, a.db.Model(&Account{}).Count(&count).Error
}

// Save creates or replaces the account, preserving its creation time.
func (a *Accounts) Save(account *Account) error {
	return a.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "handle"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at",
			"name",
			"summary",
			"icon_url",
			"image_url",
			"public_key",
			"manually_approves_followers",
			"discoverable",
			"fields",
		}),
	}).Create(account).Error
}
