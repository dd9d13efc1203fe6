package activitypub

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/internal/to"
	"github.com/davecheney/fedipub/models"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// NotesShow serves the Note for a local post.
func NotesShow(env *Env, w http.ResponseWriter, r *http.Request) error {
	post, err := findPost(env, r)
	if err != nil {
		return err
	}
	return to.Activity(w, NewBuilder(env.Domain).Note(post))
}

// NoteActivityShow serves the Create activity for a local post.
func NoteActivityShow(env *Env, w http.ResponseWriter, r *http.Request) error {
	post, err := findPost(env, r)
	if err != nil {
		return err
	}
	return to.Activity(w, NewBuilder(env.Domain).Create(post))
}

// PostShow serves /@{handle}/{id}: the Note to ActivityPub clients,
// otherwise the post's rendered content.
func PostShow(env *Env, w http.ResponseWriter, r *http.Request) error {
	post, err := findPost(env, r)
	if err != nil {
		return err
	}
	if httpx.WantsActivityPub(r) {
		return to.Activity(w, NewBuilder(env.Domain).Note(post))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = io.WriteString(w, post.ContentHTML)
	return err
}

// findPost returns the post named by the request. Posts addressed only
// to followers or to no one are not served.
func findPost(env *Env, r *http.Request) (*models.Post, error) {
	handle, id := chi.URLParam(r, "handle"), chi.URLParam(r, "id")
	post, err := models.NewPosts(env.DB).Find(handle, id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, httpx.Error(http.StatusNotFound, fmt.Errorf("no post %s/%s", handle, id))
	case err != nil:
		return nil, err
	}
	switch post.Visibility {
	case models.FollowersOnly, models.Direct:
		return nil, httpx.Error(http.StatusNotFound, fmt.Errorf("post %s/%s is not public", handle, id))
	}
	return post, nil
}
