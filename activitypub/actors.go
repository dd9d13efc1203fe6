package activitypub

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/davecheney/fedipub/internal/algorithms"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/internal/to"
	"github.com/davecheney/fedipub/models"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// UsersShow serves the actor document of a local account. Browsers are
// sent to the account's profile address.
func UsersShow(env *Env, w http.ResponseWriter, r *http.Request) error {
	account, err := findAccount(env, chi.URLParam(r, "handle"))
	if err != nil {
		return err
	}
	if !httpx.WantsActivityPub(r) {
		http.Redirect(w, r, fmt.Sprintf("https://%s/@%s", env.Domain, account.Handle), http.StatusFound)
		return nil
	}
	return writeActor(env, w, account)
}

// ProfileShow serves /@{handle}: the actor document to ActivityPub
// clients, otherwise a redirect to the account's feed.
func ProfileShow(env *Env, w http.ResponseWriter, r *http.Request) error {
	account, err := findAccount(env, chi.URLParam(r, "handle"))
	if err != nil {
		return err
	}
	if !httpx.WantsActivityPub(r) {
		http.Redirect(w, r, fmt.Sprintf("https://%s/@%s.atom", env.Domain, account.Handle), http.StatusFound)
		return nil
	}
	return writeActor(env, w, account)
}

func findAccount(env *Env, handle string) (*models.Account, error) {
	account, err := models.NewAccounts(env.DB).Find(handle)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, httpx.Error(http.StatusNotFound, fmt.Errorf("unknown account %q", handle))
	case err != nil:
		return nil, err
	}
	return account, nil
}

func writeActor(env *Env, w http.ResponseWriter, account *models.Account) error {
	w.Header().Set("Cache-Control", "max-age=300")
	return to.Activity(w, actorDocument(env, account))
}

func actorDocument(env *Env, account *models.Account) map[string]any {
	id := env.ActorURL(account.Handle)
	actor := map[string]any{
		"@context": []any{
			activityStreams,
			"https://w3id.org/security/v1",
			map[string]any{
				"manuallyApprovesFollowers": "as:manuallyApprovesFollowers",
				"discoverable":              "toot:discoverable",
				"toot":                      "http://joinmastodon.org/ns#",
				"schema":                    "http://schema.org#",
				"PropertyValue":             "schema:PropertyValue",
				"value":                     "schema:value",
			},
		},
		"id":                id,
		"type":              "Person",
		"preferredUsername": account.Handle,
		"name":              account.Name,
		"summary":           account.Summary,
		"url":               fmt.Sprintf("https://%s/@%s", env.Domain, account.Handle),
		"inbox":             id + "/inbox",
		"outbox":            id + "/outbox",
		"followers":         id + "/followers",
		"following":         id + "/following",
		"publicKey": map[string]any{
			"id":           env.KeyID(account.Handle),
			"owner":        id,
			"publicKeyPem": account.PublicKey,
		},
		"manuallyApprovesFollowers": account.ManuallyApprovesFollowers,
		"discoverable":              account.Discoverable,
		"published":                 formatTime(account.CreatedAt),
		"endpoints": map[string]any{
			"sharedInbox": fmt.Sprintf("https://%s/inbox", env.Domain),
		},
	}
	if account.IconURL != "" {
		actor["icon"] = image(account.IconURL)
	}
	if account.ImageURL != "" {
		actor["image"] = image(account.ImageURL)
	}
	if len(account.Fields) > 0 {
		actor["attachment"] = algorithms.Map(account.Fields, propertyValue)
	}
	return actor
}

func image(url string) map[string]any {
	return map[string]any{
		"type":      "Image",
		"mediaType": "image/png",
		"url":       url,
	}
}

// propertyValue renders a profile field, linking values which are URLs.
func propertyValue(f models.ProfileField) map[string]any {
	value := f.Value
	if strings.HasPrefix(value, "http") {
		value = fmt.Sprintf(`<a href="%s" target="_blank" rel="nofollow noopener noreferrer me">%s</a>`, value, value)
	}
	return map[string]any{
		"type":  "PropertyValue",
		"name":  f.Name,
		"value": value,
	}
}
