package activitypub

import (
	"fmt"
	"net/http"

	"github.com/davecheney/fedipub/internal/algorithms"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/internal/to"
	"github.com/davecheney/fedipub/models"
	"github.com/go-chi/chi/v5"
)

const collectionPageSize = 40

type collectionParams struct {
	Page int `schema:"page"`
}

// Followers serves the collection of actors following a local account.
func Followers(env *Env, w http.ResponseWriter, r *http.Request) error {
	account, err := findAccount(env, chi.URLParam(r, "handle"))
	if err != nil {
		return err
	}
	followers := models.NewFollowers(env.DB)
	return collection(w, r, env.ActorURL(account.Handle)+"/followers",
		func() (int64, error) {
			return followers.Count(account.Handle)
		},
		func(page int) ([]string, error) {
			items, err := followers.Page(account.Handle, page, collectionPageSize)
			return algorithms.Map(items, func(f *models.Follower) string { return f.ActorURL }), err
		},
	)
}

// Following serves the collection of actors a local account follows.
// Only accepted follows are listed.
func Following(env *Env, w http.ResponseWriter, r *http.Request) error {
	account, err := findAccount(env, chi.URLParam(r, "handle"))
	if err != nil {
		return err
	}
	following := models.NewFollowings(env.DB)
	return collection(w, r, env.ActorURL(account.Handle)+"/following",
		func() (int64, error) {
			return following.CountAccepted(account.Handle)
		},
		func(page int) ([]string, error) {
			items, err := following.PageAccepted(account.Handle, page, collectionPageSize)
			return algorithms.Map(items, func(f *models.Following) string { return f.ActorURL }), err
		},
	)
}

// collection writes either the OrderedCollection at base or, if a page
// was requested, the OrderedCollectionPage of its items.
func collection(w http.ResponseWriter, r *http.Request, base string, count func() (int64, error), page func(int) ([]string, error)) error {
	var params collectionParams
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if !r.URL.Query().Has("page") {
		total, err := count()
		if err != nil {
			return err
		}
		return to.Activity(w, map[string]any{
			"@context":   activityStreams,
			"id":         base,
			"type":       "OrderedCollection",
			"totalItems": total,
			"first":      base + "?page=1",
		})
	}
	if params.Page < 1 {
		params.Page = 1
	}
	items, err := page(params.Page)
	if err != nil {
		return err
	}
	resp := map[string]any{
		"@context":     activityStreams,
		"id":           fmt.Sprintf("%s?page=%d", base, params.Page),
		"type":         "OrderedCollectionPage",
		"partOf":       base,
		"orderedItems": items,
	}
	if len(items) == collectionPageSize {
		resp["next"] = fmt.Sprintf("%s?page=%d", base, params.Page+1)
	}
	if params.Page > 1 {
		resp["prev"] = fmt.Sprintf("%s?page=%d", base, params.Page-1)
	}
	return to.Activity(w, resp)
}
