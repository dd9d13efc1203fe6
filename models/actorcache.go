package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A CachedActor is the last known state of a remote actor which
// published a public key.
type CachedActor struct {
	ActorURL          string `gorm:"primarykey;size:255"`
	InboxURL          string `gorm:"size:255;not null"`
	SharedInboxURL    string `gorm:"size:255"`
	PublicKeyPEM      string `gorm:"column:public_key_pem;type:text;not null"`
	Name              string `gorm:"size:255"`
	PreferredUsername string `gorm:"size:255"`
	IconURL           string `gorm:"size:255"`
	FetchedAt         time.Time
}

func (CachedActor) TableName() string {
	return "actor_cache"
}

type ActorCache struct {
	db *gorm.DB
}

func NewActorCache(db *gorm.DB) *ActorCache {
	return &ActorCache{db: db}
}

// Find returns the cached actor. Entries fetched more than maxAge ago are
// treated as missing; a maxAge of zero means entries never expire.
func (c *ActorCache) Find(actorURL string, maxAge time.Duration) (*CachedActor, error) {
	query := c.db.Where("actor_url = ?", actorURL)
	if maxAge > 0 {
		query = query.Where("fetched_at > ?", time.Now().UTC().Add(-maxAge))
	}
	var actor CachedActor
	if err := query.Take(&actor).Error; err != nil {
		return nil, err
	}
	return &actor, nil
}

// Save writes the actor through to the cache, overwriting any previous entry.
func (c *ActorCache) Save(actor *CachedActor) error {
	if actor.FetchedAt.IsZero() {
		actor.FetchedAt = time.Now().UTC()
	}
	return c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_url"}},
		UpdateAll: true,
	}).Create(actor).Error
}
