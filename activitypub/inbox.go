package activitypub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/davecheney/fedipub/internal/httpsig"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/internal/snowflake"
	"github.com/davecheney/fedipub/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-json-experiment/json"
	"gorm.io/gorm"
)

// maxActivitySize is the largest inbound activity accepted.
const maxActivitySize = 1 << 20

// InboxCreate handles activities posted to a local actor's inbox.
func InboxCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	handle := chi.URLParam(r, "handle")
	if err := accountExists(env, handle); err != nil {
		return err
	}
	activity, err := verifyAndDecode(env, w, r, handle)
	if err != nil {
		return err
	}
	return applyActivity(env, w, r, handle, activity)
}

// SharedInboxCreate handles activities posted to the server's shared
// inbox. The local actor is taken from the activity's addressing.
func SharedInboxCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	activity, err := verifyAndDecode(env, w, r, "")
	if err != nil {
		return err
	}
	handle, err := recipient(env, activity)
	if err != nil {
		return err
	}
	if handle == "" {
		env.Log().Info("shared inbox: no local recipient", "type", activity["type"], "actor", idFromAny(activity["actor"]))
		w.WriteHeader(http.StatusAccepted)
		return nil
	}
	if err := accountExists(env, handle); err != nil {
		return err
	}
	return applyActivity(env, w, r, handle, activity)
}

func accountExists(env *Env, handle string) error {
	_, err := models.NewAccounts(env.DB).Find(handle)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return httpx.Error(http.StatusNotFound, fmt.Errorf("unknown account %q", handle))
	default:
		return err
	}
}

// verifyAndDecode checks the request's signature then decodes its body.
// Remote keys are fetched signed as handle. The signing key must belong
// to the activity's actor.
func verifyAndDecode(env *Env, w http.ResponseWriter, r *http.Request, handle string) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxActivitySize)
	keyID, err := httpsig.Verify(r, env.GetKey(r.Context(), handle))
	if err != nil {
		return nil, httpx.Error(http.StatusUnauthorized, err)
	}
	var activity map[string]any
	if err := json.UnmarshalFull(r.Body, &activity); err != nil {
		return nil, httpx.Error(http.StatusBadRequest, err)
	}
	env.Log().Debug("inbox", "type", activity["type"], "keyId", keyID)
	if actor := idFromAny(activity["actor"]); actor != "" && trimKeyId(keyID) != actor {
		return nil, httpx.Error(http.StatusUnauthorized, fmt.Errorf("key %s does not belong to actor %s", keyID, actor))
	}
	return activity, nil
}

func applyActivity(env *Env, w http.ResponseWriter, r *http.Request, handle string, activity map[string]any) error {
	in := &inbox{
		env:    env,
		handle: handle,
	}
	if err := in.apply(r.Context(), activity); err != nil {
		return err
	}
	env.changed(handle)
	w.WriteHeader(http.StatusAccepted)
	return nil
}

// recipient returns the local account an activity posted to the shared
// inbox is for: the local actor or object it names, the first local
// actor it is addressed to, or else a local account following its actor.
func recipient(env *Env, activity map[string]any) (string, error) {
	object := activity["object"]
	candidates := []any{object, mapFromAny(object)["object"]}
	candidates = append(candidates, anyToSlice(activity["to"])...)
	candidates = append(candidates, anyToSlice(activity["cc"])...)
	for _, c := range candidates {
		if handle, ok := localHandle(env.Domain, idFromAny(c)); ok {
			return handle, nil
		}
	}
	actor := idFromAny(activity["actor"])
	if actor == "" {
		return "", nil
	}
	handles, err := models.NewFollowings(env.DB).Followers(actor)
	if err != nil || len(handles) == 0 {
		return "", err
	}
	return handles[0], nil
}

// localHandle returns the handle of the local actor uri is, or belongs to.
func localHandle(domain, uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, "https://"+domain+"/users/")
	if !ok {
		return "", false
	}
	handle, _, _ := strings.Cut(rest, "/")
	return handle, handle != ""
}

// inbox applies inbound activities to a local account's state.
type inbox struct {
	env    *Env
	handle string
}

func (i *inbox) apply(ctx context.Context, activity map[string]any) error {
	typ := stringFromAny(activity["type"])
	actor := idFromAny(activity["actor"])
	object := activity["object"]
	if actor == "" {
		i.env.Log().Info("inbox: activity has no actor", "handle", i.handle, "type", typ)
		return nil
	}
	i.env.Log().Info("inbox", "handle", i.handle, "type", typ, "actor", actor)

	switch typ {
	case "Follow":
		return i.follow(ctx, actor, activity)
	case "Undo":
		return i.undo(actor, object)
	case "Create":
		if typeFromAny(object) == "Note" {
			return i.record(typ, activity)
		}
	case "Update":
		if typeFromAny(object) == "Person" {
			b, err := json.Marshal(object)
			if err != nil {
				return err
			}
			return models.NewFollowers(i.env.DB).UpdateActor(i.handle, actor, string(b))
		}
	case "Delete":
		if id := idFromAny(object); id != "" {
			return models.NewInboxActivities(i.env.DB).DeleteByObject(i.handle, id)
		}
	case "Like", "Announce":
		return i.record(typ, activity)
	case "Accept":
		if _, ok := object.(string); ok || typeFromAny(object) == "Follow" {
			_, err := models.NewFollowings(i.env.DB).Accept(i.handle, actor)
			return err
		}
	case "Reject":
		return models.NewFollowings(i.env.DB).Delete(i.handle, actor)
	default:
		i.env.Log().Debug("inbox: ignoring activity", "handle", i.handle, "type", typ)
	}
	return nil
}

// follow records actor as a follower and accepts the follow.
func (i *inbox) follow(ctx context.Context, actorURL string, follow map[string]any) error {
	actor, err := NewResolver(i.env, i.handle).ResolveAndCache(ctx, actorURL)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, fmt.Errorf("resolve follower %s: %w", actorURL, err))
	}
	err = models.NewFollowers(i.env.DB).Upsert(&models.Follower{
		Handle:         i.handle,
		ActorURL:       actorURL,
		InboxURL:       actor.Inbox,
		SharedInboxURL: actor.sharedInbox(),
		ActorJSON:      actor.JSON,
		FollowedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := i.record("Follow", follow); err != nil {
		return err
	}
	accept := NewBuilder(i.env.Domain).Accept(i.handle, follow)
	return NewDelivery(i.env).Deliver(ctx, i.handle, accept, actor.Inbox)
}

func (i *inbox) undo(actor string, object any) error {
	switch typeFromAny(object) {
	case "Follow":
		return models.NewFollowers(i.env.DB).Delete(i.handle, actor)
	case "Like", "Announce":
		if id := idFromAny(object); id != "" {
			return models.NewInboxActivities(i.env.DB).DeleteByID(id)
		}
	}
	return nil
}

// record logs the activity. Activities already recorded are ignored.
func (i *inbox) record(typ string, activity map[string]any) error {
	id := stringFromAny(activity["id"])
	if id == "" {
		id = snowflake.Now().String()
	}
	var objectJSON string
	if object, ok := activity["object"]; ok && object != nil {
		b, err := json.Marshal(object)
		if err != nil {
			return err
		}
		objectJSON = string(b)
	}
	_, err := models.NewInboxActivities(i.env.DB).Record(&models.InboxActivity{
		ID:         id,
		Handle:     i.handle,
		Type:       typ,
		ActorURL:   idFromAny(activity["actor"]),
		ObjectURL:  idFromAny(activity["object"]),
		ObjectJSON: objectJSON,
	})
	return err
}
