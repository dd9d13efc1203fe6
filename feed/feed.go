// Package feed serves an Atom feed of each account's public posts.
package feed

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/davecheney/fedipub/activitypub"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/models"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/feeds"
	"gorm.io/gorm"
)

// size is the number of posts in a feed.
const size = 20

// Show serves /@{handle}.atom.
func Show(env *activitypub.Env, w http.ResponseWriter, r *http.Request) error {
	handle := strings.TrimSuffix(chi.URLParam(r, "handle"), ".atom")
	account, err := models.NewAccounts(env.DB).Find(handle)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return httpx.Error(http.StatusNotFound, fmt.Errorf("unknown account %q", handle))
	case err != nil:
		return err
	}
	posts, err := models.NewPosts(env.DB).PublicPage(handle, "", "", size)
	if err != nil {
		return err
	}
	atom, err := New(env.Domain, account, posts).ToAtom()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=300")
	_, err = io.WriteString(w, atom)
	return err
}

// New returns the feed of posts by account, newest first.
func New(domain string, account *models.Account, posts []*models.Post) *feeds.Feed {
	b := activitypub.NewBuilder(domain)
	feed := &feeds.Feed{
		Id:          fmt.Sprintf("https://%s/@%s.atom", domain, account.Handle),
		Title:       account.Name,
		Link:        &feeds.Link{Href: fmt.Sprintf("https://%s/@%s", domain, account.Handle)},
		Description: account.Summary,
		Author:      &feeds.Author{Name: account.Name},
		Created:     account.CreatedAt,
		Updated:     account.UpdatedAt,
	}
	for _, post := range posts {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:      b.NoteID(post.Handle, post.ID),
			Title:   title(post),
			Link:    &feeds.Link{Href: b.NoteURL(post.Handle, post.ID)},
			Content: post.ContentHTML,
			Author:  &feeds.Author{Name: account.Name},
			Created: post.PublishedAt,
			Updated: post.UpdatedAt,
		})
	}
	if len(posts) > 0 && posts[0].PublishedAt.After(feed.Updated) {
		feed.Updated = posts[0].PublishedAt
	}
	return feed
}

// title is the post's summary, or the start of its first line.
func title(post *models.Post) string {
	if post.Summary != "" {
		return post.Summary
	}
	line, _, _ := strings.Cut(strings.TrimSpace(post.Content), "\n")
	if utf8.RuneCountInString(line) <= 80 {
		return line
	}
	return string([]rune(line)[:79]) + "…"
}
