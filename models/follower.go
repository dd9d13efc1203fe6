package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A Follower is a remote actor following a local account.
type Follower struct {
	Handle         string    `gorm:"primarykey;size:64"`
	ActorURL       string    `gorm:"primarykey;size:255"`
	InboxURL       string    `gorm:"size:255;not null"`
	SharedInboxURL *string   `gorm:"size:255"`
	ActorJSON      string    `gorm:"type:text"`
	FollowedAt     time.Time `gorm:"not null"`
}

type Followers struct {
	db *gorm.DB
}

func NewFollowers(db *gorm.DB) *Followers {
	return &Followers{db: db}
}

// Upsert records the follower, replacing any existing row for the same
// (handle, actor) pair.
func (f *Followers) Upsert(follower *Follower) error {
	return f.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "handle"}, {Name: "actor_url"}},
		UpdateAll: true,
	}).Create(follower).Error
}

func (f *Followers) Delete(handle, actorURL string) error {
	return f.db.Where("handle = ? AND actor_url = ?", handle, actorURL).Delete(&Follower{}).Error
}

// UpdateActor replaces the cached actor document of an existing follower.
func (f *Followers) UpdateActor(handle, actorURL, actorJSON string) error {
	return f.db.Model(&Follower{}).
		Where("handle = ? AND actor_url = ?", handle, actorURL).
		Update("actor_json", actorJSON).Error
}

// Inboxes returns the distinct inboxes of handle's followers, preferring
// each follower's shared inbox.
func (f *Followers) Inboxes(handle string) ([]string, error) {
	var inboxes []string
	err := f.db.Raw(`
		SELECT DISTINCT COALESCE(NULLIF(shared_inbox_url, ''), inbox_url)
		FROM followers
		WHERE handle = ?`, handle).Scan(&inboxes).Error
	return inboxes, err
}

func (f *Followers) Count(handle string) (int64, error) {
	var count int64
	return count, f.db.Model(&Follower{}).Where("handle = ?", handle).Count(&count).Error
}

// Page returns the given 1 based page of followers, newest first.
func (f *Followers) Page(handle string, page, limit int) ([]*Follower, error) {
	var followers []*Follower
	err := f.db.Scopes(paginate(page, limit)).
		Where("handle = ?", handle).
		Order("followed_at DESC").
		Find(&followers).Error
	return followers, err
}

func (f *Followers) All(handle string) ([]*Follower, error) {
	var followers []*Follower
	return followers, f.db.Where("handle = ?", handle).Order("followed_at").Find(&followers).Error
}

// Replace swaps handle's followers for the given set.
func (f *Followers) Replace(handle string, followers []*Follower) error {
	return f.db.Transaction(func(tx *gorm.DB) error {
		return forEach(tx,
			func(tx *gorm.DB) error {
				return tx.Where("handle = ?", handle).Delete(&Follower{}).Error
			},
			func(tx *gorm.DB) error {
				for _, follower := range followers {
					follower.Handle = handle
					if err := NewFollowers(tx).Upsert(follower); err != nil {
						return err
					}
				}
				return nil
			},
		)
	})
}
