package activitypub

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/davecheney/fedipub/internal/algorithms"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/internal/to"
	"github.com/davecheney/fedipub/models"
	"github.com/go-chi/chi/v5"
)

const outboxPageSize = 20

// outboxParams are the query parameters of an outbox page.
type outboxParams struct {
	Page  bool   `schema:"page"`
	MaxID string `schema:"max_id"`
	MinID string `schema:"min_id"`
}

// Outbox serves a local account's public posts as Create activities.
func Outbox(env *Env, w http.ResponseWriter, r *http.Request) error {
	account, err := findAccount(env, chi.URLParam(r, "handle"))
	if err != nil {
		return err
	}
	var params outboxParams
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	switch params.Page {
	case true:
		return outboxShow(env, w, account, &params)
	default:
		return outboxIndex(env, w, account)
	}
}

func outboxIndex(env *Env, w http.ResponseWriter, account *models.Account) error {
	count, err := models.NewPosts(env.DB).CountPublic(account.Handle)
	if err != nil {
		return err
	}
	base := env.ActorURL(account.Handle) + "/outbox"
	return to.Activity(w, map[string]any{
		"@context":   activityStreams,
		"id":         base,
		"type":       "OrderedCollection",
		"totalItems": count,
		"first":      base + "?page=true",
	})
}

func outboxShow(env *Env, w http.ResponseWriter, account *models.Account, params *outboxParams) error {
	posts, err := models.NewPosts(env.DB).PublicPage(account.Handle, params.MaxID, params.MinID, outboxPageSize)
	if err != nil {
		return err
	}
	base := env.ActorURL(account.Handle) + "/outbox"
	id := base + "?page=true"
	if params.MaxID != "" {
		id += "&max_id=" + url.QueryEscape(params.MaxID)
	}
	b := NewBuilder(env.Domain)
	resp := map[string]any{
		"@context":     activityStreams,
		"id":           id,
		"type":         "OrderedCollectionPage",
		"partOf":       base,
		"orderedItems": algorithms.Map(posts, b.Create),
	}
	if len(posts) == outboxPageSize {
		resp["next"] = fmt.Sprintf("%s?page=true&max_id=%s", base, url.QueryEscape(posts[len(posts)-1].ID))
	}
	if params.MaxID != "" && len(posts) > 0 {
		resp["prev"] = fmt.Sprintf("%s?page=true&min_id=%s", base, url.QueryEscape(posts[0].ID))
	}
	return to.Activity(w, resp)
}
