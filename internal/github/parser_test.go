package github

import (
	"testing"
	"time"

	"github.com/davecheney/fedipub/models"
	"github.com/stretchr/testify/require"
)

func TestParsePost(t *testing.T) {
	t.Run("front matter", func(t *testing.T) {
		require := require.New(t)
		post, err := ParsePost([]byte(`---
id: 01HV
published: 2024-03-04T05:06:07Z
visibility: unlisted
sensitive: true
summary: "spoilers"
in_reply_to: https://remote.example/notes/1
conversation: tag:remote.example,2024:1
---
Hello **world** #GoLang #golang

![a cat](cat.png)
![remote](https://cdn.example/dog.jpg)
`), "hello.md", "alice", "example.com")
		require.NoError(err)
		require.Equal("alice", post.Handle)
		require.Equal("01HV", post.ID)
		require.Equal(time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC), post.PublishedAt)
		require.Equal(models.Unlisted, post.Visibility)
		require.True(post.Sensitive)
		require.Equal("spoilers", post.Summary)
		require.Equal("https://remote.example/notes/1", post.InReplyTo)
		require.Equal("tag:remote.example,2024:1", post.Conversation)
		require.Equal([]string{"https://example.com/media/alice/cat.png", "https://cdn.example/dog.jpg"}, post.MediaURLs)
		require.Equal("Hello **world** #GoLang #golang", post.Content)
		require.Equal([]string{"golang"}, post.Tags)
		require.Contains(post.ContentHTML, "<strong>world</strong>")
		require.Contains(post.ContentHTML, `<a href="https://example.com/tags/GoLang">#GoLang</a>`)
		require.NotContains(post.ContentHTML, "<img")
	})

	t.Run("defaults", func(t *testing.T) {
		require := require.New(t)
		before := time.Now()
		post, err := ParsePost([]byte("just text"), "2024-01-01-note.md", "alice", "example.com")
		require.NoError(err)
		require.Equal("2024-01-01-note", post.ID)
		require.Equal(models.Public, post.Visibility)
		require.False(post.PublishedAt.Before(before.Add(-time.Second)))
		require.Equal("<p>just text</p>", post.ContentHTML)
		require.Empty(post.MediaURLs)
		require.Empty(post.Tags)
	})

	t.Run("date only", func(t *testing.T) {
		require := require.New(t)
		post, err := ParsePost([]byte("---\npublished: 2024-05-06\n---\nhi"), "a.md", "alice", "example.com")
		require.NoError(err)
		require.Equal(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), post.PublishedAt)
	})

	t.Run("raw html is escaped", func(t *testing.T) {
		require := require.New(t)
		post, err := ParsePost([]byte("<script>alert(1)</script>"), "a.md", "alice", "example.com")
		require.NoError(err)
		require.NotContains(post.ContentHTML, "<script>")
	})

	t.Run("mentions and links", func(t *testing.T) {
		require := require.New(t)
		post, err := ParsePost([]byte("hi @bob@remote.example see https://go.dev"), "a.md", "alice", "example.com")
		require.NoError(err)
		require.Contains(post.ContentHTML, `<a href="https://remote.example/@bob">@bob</a>`)
		require.Contains(post.ContentHTML, `<a href="https://go.dev">https://go.dev</a>`)
	})

	t.Run("bad front matter", func(t *testing.T) {
		require := require.New(t)
		_, err := ParsePost([]byte("---\nid: [unclosed\n---\nbody"), "a.md", "alice", "example.com")
		require.Error(err)

		_, err = ParsePost([]byte("---\npublished: yesterday\n---\nbody"), "a.md", "alice", "example.com")
		require.Error(err)
	})
}
