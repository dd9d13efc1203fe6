package wellknown

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/davecheney/fedipub/activitypub"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/internal/to"
	"github.com/davecheney/fedipub/internal/webfinger"
	"github.com/davecheney/fedipub/models"
	"gorm.io/gorm"
)

// WebfingerShow answers acct: lookups for local accounts.
func WebfingerShow(env *activitypub.Env, w http.ResponseWriter, r *http.Request) error {
	resource := r.URL.Query().Get("resource")
	if !strings.HasPrefix(resource, "acct:") {
		return httpx.Error(http.StatusBadRequest, fmt.Errorf("unsupported resource %q", resource))
	}
	acct, err := webfinger.Parse(resource)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err)
	}
	if acct.Host != env.Domain {
		// note, compare with the configured domain, not the request host
		return httpx.Error(http.StatusNotFound, fmt.Errorf("%s is not local", acct))
	}
	account, err := models.NewAccounts(env.DB).Find(acct.User)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return httpx.Error(http.StatusNotFound, fmt.Errorf("unknown account %s", acct))
	case err != nil:
		return err
	}

	self := env.ActorURL(account.Handle)
	profile := fmt.Sprintf("https://%s/@%s", env.Domain, account.Handle)
	return to.JRD(w, &webfinger.Webfinger{
		Subject: resource,
		Aliases: []string{self, profile},
		Links: []webfinger.Link{{
			Rel:  "self",
			Type: "application/activity+json",
			Href: self,
		}, {
			Rel:  "http://webfinger.net/rel/profile-page",
			Type: "text/html",
			Href: profile,
		}},
	})
}
