package github

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/davecheney/fedipub/activitypub"
	"github.com/davecheney/fedipub/models"
	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestEnv(t *testing.T) *activitypub.Env {
	t.Helper()
	require := require.New(t)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	require.NoError(err)
	sqlDB, err := db.DB()
	require.NoError(err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(db.AutoMigrate(models.AllTables()...))
	return &activitypub.Env{
		DB:     db,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Domain: "example.com",
	}
}

func TestSyncerPull(t *testing.T) {
	files := map[string]string{
		"accounts/alice/profile.json": `{
			"name": "Alice",
			"summary": "hello",
			"icon": "avatar.png",
			"fields": [{"name": "Home", "value": "https://alice.example"}]
		}`,
		"accounts/alice/public_key.pem":      "-----BEGIN PUBLIC KEY-----\n",
		"accounts/alice/posts/first.md":      "---\npublished: 2024-01-01\n---\nfirst #post",
		"accounts/alice/posts/second.md":     "---\nid: two\npublished: 2024-01-02\nvisibility: followers\n---\nsecond",
		"accounts/alice/posts/notes.txt":     "not a post",
		"accounts/alice/data/followers.json": `[{"actorUrl":"https://remote.example/users/bob","inboxUrl":"https://remote.example/users/bob/inbox","sharedInboxUrl":"https://remote.example/inbox","followedAt":"2024-01-01T00:00:00Z"}]`,
		"accounts/alice/data/following.json": `[{"actorUrl":"https://remote.example/users/carol","inboxUrl":"https://remote.example/users/carol/inbox","accepted":true,"requestedAt":"2024-01-01T00:00:00Z","acceptedAt":"2024-01-02T00:00:00Z"}]`,
		"accounts/bob/profile.json":          `{"discoverable": false}`,
	}

	t.Run("discovers accounts", func(t *testing.T) {
		require := require.New(t)
		env := setupTestEnv(t)
		repo := newFakeRepo(t, files)

		n, err := NewSyncer(env, repo.client()).Pull(context.Background(), "")
		require.NoError(err)
		// two profiles, two posts, followers and following
		require.Equal(6, n)

		alice, err := models.NewAccounts(env.DB).Find("alice")
		require.NoError(err)
		require.Equal("Alice", alice.Name)
		require.Equal("https://example.com/media/alice/avatar.png", alice.IconURL)
		require.Equal("-----BEGIN PUBLIC KEY-----\n", alice.PublicKey)
		require.True(alice.Discoverable)
		require.Equal([]models.ProfileField{{Name: "Home", Value: "https://alice.example"}}, alice.Fields)

		bob, err := models.NewAccounts(env.DB).Find("bob")
		require.NoError(err)
		require.Equal("bob", bob.Name)
		require.False(bob.Discoverable)

		posts := models.NewPosts(env.DB)
		first, err := posts.Find("alice", "first")
		require.NoError(err)
		require.Equal([]string{"post"}, first.Tags)
		second, err := posts.Find("alice", "two")
		require.NoError(err)
		require.Equal(models.FollowersOnly, second.Visibility)

		followers, err := models.NewFollowers(env.DB).All("alice")
		require.NoError(err)
		require.Len(followers, 1)
		require.Equal("https://remote.example/inbox", *followers[0].SharedInboxURL)

		following, err := models.NewFollowings(env.DB).All("alice")
		require.NoError(err)
		require.Len(following, 1)
		require.True(following[0].Accepted)
	})

	t.Run("removes posts deleted from the repository", func(t *testing.T) {
		require := require.New(t)
		env := setupTestEnv(t)
		repo := newFakeRepo(t, files)
		s := NewSyncer(env, repo.client())

		require.NoError(models.NewPosts(env.DB).Save(&models.Post{
			Handle:      "alice",
			ID:          "stale",
			PublishedAt: time.Now(),
		}))
		_, err := s.Pull(context.Background(), "alice")
		require.NoError(err)

		_, err = models.NewPosts(env.DB).Find("alice", "stale")
		require.ErrorIs(err, gorm.ErrRecordNotFound)
		n, err := models.NewPosts(env.DB).Count()
		require.NoError(err)
		require.EqualValues(2, n)
	})

	t.Run("keeps the federation stamp of existing posts", func(t *testing.T) {
		require := require.New(t)
		env := setupTestEnv(t)
		repo := newFakeRepo(t, files)
		s := NewSyncer(env, repo.client())

		_, err := s.Pull(context.Background(), "alice")
		require.NoError(err)
		posts := models.NewPosts(env.DB)
		require.NoError(posts.MarkFederated("alice", "first", time.Now()))

		_, err = s.Pull(context.Background(), "alice")
		require.NoError(err)
		first, err := posts.Find("alice", "first")
		require.NoError(err)
		require.NotNil(first.FederatedAt)
	})

	t.Run("empty repository", func(t *testing.T) {
		require := require.New(t)
		env := setupTestEnv(t)
		repo := newFakeRepo(t, nil)

		n, err := NewSyncer(env, repo.client()).Pull(context.Background(), "")
		require.NoError(err)
		require.Equal(0, n)
	})
}

func TestSyncerPush(t *testing.T) {
	require := require.New(t)
	env := setupTestEnv(t)
	repo := newFakeRepo(t, map[string]string{
		"accounts/alice/data/received/likes.json": `[{"id":"old","actorUrl":"https://remote.example/users/old","objectUrl":"https://example.com/users/alice/posts/0","receivedAt":"2024-01-01T00:00:00Z"}]`,
	})
	s := NewSyncer(env, repo.client())

	require.NoError(models.NewAccounts(env.DB).Save(&models.Account{Handle: "alice", Name: "Alice"}))
	require.NoError(models.NewFollowers(env.DB).Upsert(&models.Follower{
		Handle:     "alice",
		ActorURL:   "https://remote.example/users/bob",
		InboxURL:   "https://remote.example/users/bob/inbox",
		FollowedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	activities := models.NewInboxActivities(env.DB)
	for _, a := range []*models.InboxActivity{
		{ID: "like-1", Type: "Like", ActorURL: "https://remote.example/users/bob", ObjectURL: "https://example.com/users/alice/posts/1"},
		{ID: "boost-1", Type: "Announce", ActorURL: "https://remote.example/users/bob", ObjectURL: "https://example.com/users/alice/posts/1"},
		{ID: "reply-1", Type: "Create", ActorURL: "https://remote.example/users/bob", ObjectURL: "https://remote.example/notes/1"},
		{ID: "follow-1", Type: "Follow", ActorURL: "https://remote.example/users/bob", ObjectURL: "https://example.com/users/alice"},
	} {
		a.Handle = "alice"
		_, err := activities.Record(a)
		require.NoError(err)
	}

	n, err := s.Push(context.Background())
	require.NoError(err)
	// followers, following, likes, boosts, replies
	require.Equal(5, n)

	content, ok := repo.file("accounts/alice/data/followers.json")
	require.True(ok)
	var followers []follower
	require.NoError(json.Unmarshal([]byte(content), &followers))
	require.Len(followers, 1)
	require.Equal("https://remote.example/users/bob", followers[0].ActorURL)
	require.Nil(followers[0].SharedInboxURL)

	content, ok = repo.file("accounts/alice/data/received/likes.json")
	require.True(ok)
	var likes []received
	require.NoError(json.Unmarshal([]byte(content), &likes))
	require.Len(likes, 2)
	require.Equal("old", likes[0].ID)
	require.Equal("like-1", likes[1].ID)

	unsynced, err := activities.Unsynced("alice", 10)
	require.NoError(err)
	require.Empty(unsynced)

	// nothing changed, nothing is written
	n, err = s.Push(context.Background())
	require.NoError(err)
	require.Equal(0, n)
	require.Len(repo.written(), 5)
}
