package feed

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davecheney/fedipub/activitypub"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/models"
	"github.com/go-chi/chi/v5"
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
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(db.AutoMigrate(models.AllTables()...))

	require.NoError(models.NewAccounts(db).Save(&models.Account{Handle: "alice", Name: "Alice", Summary: "posts"}))
	posts := models.NewPosts(db)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range []models.Visibility{models.Public, models.FollowersOnly, models.Public, models.Unlisted} {
		require.NoError(posts.Save(&models.Post{
			Handle:      "alice",
			ID:          fmt.Sprintf("%03d", i),
			Content:     fmt.Sprintf("post %d", i),
			ContentHTML: fmt.Sprintf("<p>post %d</p>", i),
			PublishedAt: start.Add(time.Duration(i) * time.Hour),
			Visibility:  v,
		}))
	}
	return &activitypub.Env{
		DB:     db,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Domain: "local.example",
	}
}

func TestShow(t *testing.T) {
	env := setupTestEnv(t)
	r := chi.NewRouter()
	r.Get("/@{handle}", httpx.HandlerFunc(env, Show))

	t.Run("public posts", func(t *testing.T) {
		require := require.New(t)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/@alice.atom", nil))
		require.Equal(http.StatusOK, rec.Code)
		require.Equal("application/atom+xml; charset=utf-8", rec.Header().Get("Content-Type"))

		body := rec.Body.String()
		require.Contains(body, "<title>Alice</title>")
		require.Equal(2, strings.Count(body, "<entry>"))
		require.Contains(body, "<id>https://local.example/users/alice/posts/002</id>")
		require.Contains(body, "<id>https://local.example/users/alice/posts/000</id>")
		require.NotContains(body, "posts/001")
		require.NotContains(body, "posts/003")
		// newest first
		require.Less(strings.Index(body, "posts/002"), strings.Index(body, "posts/000"))
	})

	t.Run("unknown account", func(t *testing.T) {
		require := require.New(t)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/@nobody.atom", nil))
		require.Equal(http.StatusNotFound, rec.Code)
	})
}

func TestTitle(t *testing.T) {
	require := require.New(t)
	require.Equal("spoilers", title(&models.Post{Summary: "spoilers", Content: "body"}))
	require.Equal("first line", title(&models.Post{Content: "first line\nsecond line"}))
	long := strings.Repeat("ab", 50)
	got := title(&models.Post{Content: long})
	require.Equal(80, len([]rune(got)))
	require.True(strings.HasSuffix(got, "…"))
}
