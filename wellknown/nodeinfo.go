package wellknown

import (
	"fmt"
	"net/http"

	"github.com/davecheney/fedipub/activitypub"
	"github.com/davecheney/fedipub/internal/to"
	"github.com/davecheney/fedipub/models"
	"github.com/go-json-experiment/json"
)

const nodeInfoSchema = "http://nodeinfo.diaspora.software/ns/schema/2.1"

// Version is reported by nodeinfo. It is set at link time.
var Version = "0.0.0-devel"

func NodeInfoIndex(env *activitypub.Env, w http.ResponseWriter, r *http.Request) error {
	return to.JRD(w, map[string]any{
		"links": []any{
			map[string]any{
				"rel":  nodeInfoSchema,
				"href": fmt.Sprintf("https://%s/nodeinfo/2.1", env.Domain),
			},
		},
	})
}

// NodeInfoShow serves the nodeinfo 2.1 document.
// https://github.com/jhass/nodeinfo/blob/main/schemas/2.1/schema.json
func NodeInfoShow(env *activitypub.Env, w http.ResponseWriter, r *http.Request) error {
	users, err := models.NewAccounts(env.DB).Count()
	if err != nil {
		return err
	}
	posts, err := models.NewPosts(env.DB).Count()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", `application/json; profile="`+nodeInfoSchema+`#"`)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "max-age=1800")
	return json.MarshalFull(w, map[string]any{
		"version": "2.1",
		"software": map[string]any{
			"name":       "fedipub",
			"version":    Version,
			"repository": "https://github.com/davecheney/fedipub",
		},
		"protocols": []any{"activitypub"},
		"services": map[string]any{
			"inbound":  []any{},
			"outbound": []any{"atom1.0"},
		},
		"usage": map[string]any{
			"users": map[string]any{
				"total":          users,
				"activeMonth":    users,
				"activeHalfyear": users,
			},
			"localPosts": posts,
		},
		"openRegistrations": false,
		"metadata":          map[string]any{},
	})
}
