package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInboxActivities(t *testing.T) {
	db := setupTestDB(t)

	t.Run("Record is idempotent", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		activities := NewInboxActivities(tx)
		activity := func() *InboxActivity {
			return &InboxActivity{
				ID:        "https://remote.example/likes/1",
				Handle:    "alice",
				Type:      "Like",
				ActorURL:  "https://remote.example/users/bob",
				ObjectURL: "https://local.example/users/alice/posts/1",
			}
		}
		inserted, err := activities.Record(activity())
		require.NoError(err)
		require.True(inserted)

		inserted, err = activities.Record(activity())
		require.NoError(err)
		require.False(inserted)

		var count int64
		require.NoError(tx.Model(&InboxActivity{}).Count(&count).Error)
		require.EqualValues(1, count)
	})

	t.Run("Unsynced and MarkSynced", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		activities := NewInboxActivities(tx)
		base := time.Now().UTC().Add(-time.Hour)
		for i, id := range []string{"c", "a", "b"} {
			_, err := activities.Record(&InboxActivity{
				ID:         id,
				Handle:     "alice",
				Type:       "Create",
				ReceivedAt: base.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(err)
		}

		unsynced, err := activities.Unsynced("alice", 2)
		require.NoError(err)
		require.Len(unsynced, 2)
		require.Equal("c", unsynced[0].ID)
		require.Equal("a", unsynced[1].ID)

		require.NoError(activities.MarkSynced([]string{"c", "a"}))
		unsynced, err = activities.Unsynced("alice", 100)
		require.NoError(err)
		require.Len(unsynced, 1)
		require.Equal("b", unsynced[0].ID)

		purged, err := activities.PurgeSynced(time.Now())
		require.NoError(err)
		require.EqualValues(2, purged)
	})

	t.Run("DeleteByObject", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		activities := NewInboxActivities(tx)
		_, err := activities.Record(&InboxActivity{ID: "1", Handle: "alice", Type: "Create", ObjectURL: "https://remote.example/notes/1"})
		require.NoError(err)
		_, err = activities.Record(&InboxActivity{ID: "2", Handle: "bob", Type: "Create", ObjectURL: "https://remote.example/notes/1"})
		require.NoError(err)

		require.NoError(activities.DeleteByObject("alice", "https://remote.example/notes/1"))

		var ids []string
		require.NoError(tx.Model(&InboxActivity{}).Pluck("id", &ids).Error)
		require.Equal([]string{"2"}, ids)
	})
}
