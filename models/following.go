package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A Following is a remote actor a local account has asked to follow.
// It is created pending and becomes accepted when the remote sends Accept.
type Following struct {
	Handle      string     `gorm:"primarykey;size:64"`
	ActorURL    string     `gorm:"primarykey;size:255"`
	InboxURL    string     `gorm:"size:255;not null"`
	Accepted    bool       `gorm:"not null"`
	RequestedAt time.Time  `gorm:"not null"`
	AcceptedAt  *time.Time
}

func (Following) TableName() string {
	return "following"
}

type Followings struct {
	db *gorm.DB
}

func NewFollowings(db *gorm.DB) *Followings {
	return &Followings{db: db}
}

// Find returns the following row for the pair, or gorm.ErrRecordNotFound.
func (f *Followings) Find(handle, actorURL string) (*Following, error) {
	var following Following
	if err := f.db.Take(&following, "handle = ? AND actor_url = ?", handle, actorURL).Error; err != nil {
		return nil, err
	}
	return &following, nil
}

// CreatePending inserts a pending row. It reports false if a row for the
// pair already existed, in which case nothing is changed.
func (f *Followings) CreatePending(handle, actorURL, inboxURL string) (bool, error) {
	res := f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Following{
		Handle:      handle,
		ActorURL:    actorURL,
		InboxURL:    inboxURL,
		RequestedAt: time.Now().UTC(),
	})
	return res.RowsAffected == 1, res.Error
}

// Accept marks the pair accepted. It reports false if there was no row.
func (f *Followings) Accept(handle, actorURL string) (bool, error) {
	res := f.db.Model(&Following{}).
		Where("handle = ? AND actor_url = ?", handle, actorURL).
		Updates(map[string]any{
			"accepted":    true,
			"accepted_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

func (f *Followings) Delete(handle, actorURL string) error {
	return f.db.Where("handle = ? AND actor_url = ?", handle, actorURL).Delete(&Following{}).Error
}

// Followers returns the handles of the local accounts following actorURL.
func (f *Followings) Followers(actorURL string) ([]string, error) {
	var handles []string
	err := f.db.Model(&Following{}).
		Where("actor_url = ?", actorURL).
		Order("handle").
		Pluck("handle", &handles).Error
	return handles, err
}

func (f *Followings) CountAccepted(handle string) (int64, error) {
	var count int64
	return count, f.db.Model(&Following{}).Where("handle = ? AND accepted = ?", handle, true).Count(&count).Error
}

// PageAccepted returns the given 1 based page of accepted follows, newest first.
func (f *Followings) PageAccepted(handle string, page, limit int) ([]*Following, error) {
	var following []*Following
	err := f.db.Scopes(paginate(page, limit)).
		Where("handle = ? AND accepted = ?", handle, true).
		Order("accepted_at DESC").
		Find(&following).Error
	return following, err
}

func (f *Followings) All(handle string) ([]*Following, error) {
	var following []*Following
	return following, f.db.Where("handle = ?", handle).Order("requested_at").Find(&following).Error
}

// Replace swaps handle's follows for the given set.
func (f *Followings) Replace(handle string, following []*Following) error {
	return f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("handle = ?", handle).Delete(&Following{}).Error; err != nil {
			return err
		}
		for _, fl := range following {
			fl.Handle = handle
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(fl).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
