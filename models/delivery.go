package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	// MaxDeliveryAttempts is the number of retries after which a queued
	// delivery is no longer selected.
	MaxDeliveryAttempts = 10

	// InitialDeliveryDelay is how long a failed delivery waits before its
	// first retry.
	InitialDeliveryDelay = 60 * time.Second

	// MaxDeliveryBackoff caps the delay between retries.
	MaxDeliveryBackoff = 24 * time.Hour
)

// A DeliveryQueueItem is an outbound activity waiting to be retried.
type DeliveryQueueItem struct {
	ID            uint64    `gorm:"primarykey"`
	Handle        string    `gorm:"size:64;not null"`
	ActivityJSON  string    `gorm:"type:text;not null"`
	TargetInbox   string    `gorm:"size:255;not null"`
	Attempts      int       `gorm:"not null"`
	NextAttemptAt time.Time `gorm:"not null;index"`
	LastError     string    `gorm:"type:text"`
	CreatedAt     time.Time
}

func (DeliveryQueueItem) TableName() string {
	return "delivery_queue"
}

// Backoff returns the delay after the given number of failed attempts:
// 60s doubling each attempt, capped at 24 hours.
func Backoff(attempts int) time.Duration {
	if attempts >= 11 {
		// 60 << 11 already exceeds the cap
		return MaxDeliveryBackoff
	}
	d := InitialDeliveryDelay << attempts
	if d > MaxDeliveryBackoff {
		return MaxDeliveryBackoff
	}
	return d
}

type DeliveryQueue struct {
	db *gorm.DB
}

func NewDeliveryQueue(db *gorm.DB) *DeliveryQueue {
	return &DeliveryQueue{db: db}
}

// Enqueue stores an activity whose immediate delivery failed.
func (q *DeliveryQueue) Enqueue(handle, activityJSON, inbox string, cause error) error {
	now := time.Now().UTC()
	item := &DeliveryQueueItem{
		Handle:        handle,
		ActivityJSON:  activityJSON,
		TargetInbox:   inbox,
		NextAttemptAt: now.Add(InitialDeliveryDelay),
		CreatedAt:     now,
	}
	if cause != nil {
		item.LastError = cause.Error()
	}
	return q.db.Create(item).Error
}

// Due returns up to limit items ready for another attempt, oldest due first.
func (q *DeliveryQueue) Due(now time.Time, limit int) ([]*DeliveryQueueItem, error) {
	var items []*DeliveryQueueItem
	err := q.db.Where("next_attempt_at <= ? AND attempts < ?", now.UTC(), MaxDeliveryAttempts).
		Order("next_attempt_at").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// Delivered removes a successfully delivered item.
func (q *DeliveryQueue) Delivered(item *DeliveryQueueItem) error {
	return q.db.Delete(&DeliveryQueueItem{}, item.ID).Error
}

// Failed records a failed attempt and schedules the next one.
// It returns the number of attempts now recorded against the item.
func (q *DeliveryQueue) Failed(item *DeliveryQueueItem, cause error, now time.Time) (int, error) {
	attempts := item.Attempts + 1
	err := q.db.Model(&DeliveryQueueItem{}).Where("id = ?", item.ID).UpdateColumns(map[string]interface{}{
		"attempts":        gorm.Expr("attempts + 1"),
		"next_attempt_at": now.UTC().Add(Backoff(attempts)),
		"last_error":      cause.Error(),
	}).Error
	return attempts, err
}

// Count returns the number of items in the queue, including exhausted ones.
func (q *DeliveryQueue) Count() (int64, error) {
	var count int64
	return count, q.db.Model(&DeliveryQueueItem{}).Count(&count).Error
}

// PurgeExhausted deletes items which will never be retried.
func (q *DeliveryQueue) PurgeExhausted() (int64, error) {
	res := q.db.Where("attempts >= ?", MaxDeliveryAttempts).Delete(&DeliveryQueueItem{})
	return res.RowsAffected, res.Error
}
