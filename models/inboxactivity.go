package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// An InboxActivity is an activity received from a remote actor.
type InboxActivity struct {
	ID             string    `gorm:"primarykey;size:255"`
	Handle         string    `gorm:"size:64;not null;index"`
	Type           string    `gorm:"size:32;not null"`
	ActorURL       string    `gorm:"size:255"`
	ObjectURL      string    `gorm:"size:255;index"`
	ObjectJSON     string    `gorm:"type:text"`
	ReceivedAt     time.Time `gorm:"not null"`
	SyncedToGitHub bool      `gorm:"column:synced_to_github;not null"`
}

type InboxActivities struct {
	db *gorm.DB
}

func NewInboxActivities(db *gorm.DB) *InboxActivities {
	return &InboxActivities{db: db}
}

// Record stores the activity unless one with the same id already exists.
// It reports whether a row was written.
func (i *InboxActivities) Record(activity *InboxActivity) (bool, error) {
	if activity.ReceivedAt.IsZero() {
		activity.ReceivedAt = time.Now().UTC()
	}
	res := i.db.Clauses(clause.OnConflict{DoNothing: true}).Create(activity)
	return res.RowsAffected == 1, res.Error
}

func (i *InboxActivities) DeleteByID(id string) error {
	return i.db.Where("id = ?", id).Delete(&InboxActivity{}).Error
}

// DeleteByObject removes the activities of handle which refer to objectURL.
func (i *InboxActivities) DeleteByObject(handle, objectURL string) error {
	return i.db.Where("handle = ? AND object_url = ?", handle, objectURL).Delete(&InboxActivity{}).Error
}

// Unsynced returns up to limit activities for handle not yet mirrored,
// oldest first.
func (i *InboxActivities) Unsynced(handle string, limit int) ([]*InboxActivity, error) {
	var activities []*InboxActivity
	err := i.db.Where("handle = ? AND synced_to_github = ?", handle, false).
		Order("received_at").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}

func (i *InboxActivities) MarkSynced(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return i.db.Model(&InboxActivity{}).Where("id IN ?", ids).Update("synced_to_github", true).Error
}

// PurgeSynced deletes mirrored activities received before t.
func (i *InboxActivities) PurgeSynced(t time.Time) (int64, error) {
	res := i.db.Where("synced_to_github = ? AND received_at < ?", true, t).Delete(&InboxActivity{})
	return res.RowsAffected, res.Error
}
