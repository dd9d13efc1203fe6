package admin

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/davecheney/fedipub/activitypub"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/internal/to"
	"github.com/davecheney/fedipub/models"
	"gorm.io/gorm"
)

const (
	fromGitHub = "from_github"
	toGitHub   = "to_github"
)

// paramsOf decodes the request body into v. An empty body leaves v unchanged.
func paramsOf(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return httpx.Params(r, v)
}

func SyncCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	var params struct {
		Handle    string `json:"handle" schema:"handle"`
		Direction string `json:"direction" schema:"direction"`
	}
	if err := paramsOf(r, &params); err != nil {
		return err
	}
	if env.Syncer == nil {
		return httpx.Error(http.StatusServiceUnavailable, errors.New("no content repository configured"))
	}
	var synced int
	var err error
	switch params.Direction {
	case "", fromGitHub:
		params.Direction = fromGitHub
		synced, err = env.Syncer.Pull(r.Context(), params.Handle)
	case toGitHub:
		synced, err = env.Syncer.Push(r.Context())
	default:
		return httpx.Error(http.StatusBadRequest, fmt.Errorf("unknown direction %q", params.Direction))
	}
	if err != nil {
		return fmt.Errorf("sync error: %w", err)
	}
	return to.JSON(w, map[string]any{
		"success":   true,
		"direction": params.Direction,
		"synced":    synced,
	})
}

// PublishCreate federates pending posts. With a handle and id it
// publishes that post, whether or not it was published before.
func PublishCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	var params struct {
		Handle string `json:"handle" schema:"handle"`
		ID     string `json:"id" schema:"id"`
	}
	if err := paramsOf(r, &params); err != nil {
		return err
	}
	if params.ID != "" {
		if params.Handle == "" {
			return httpx.Error(http.StatusBadRequest, errors.New("handle is required with id"))
		}
		ok, err := activitypub.PublishPost(r.Context(), env.Env, params.Handle, params.ID)
		if err != nil {
			return fmt.Errorf("publish error: %w", err)
		}
		if !ok {
			return httpx.Error(http.StatusNotFound, fmt.Errorf("post %s/%s not found", params.Handle, params.ID))
		}
		return to.JSON(w, map[string]any{"success": true, "published": 1})
	}
	published, err := activitypub.PublishAllPending(r.Context(), env.Env, params.Handle)
	if err != nil {
		return fmt.Errorf("publish error: %w", err)
	}
	return to.JSON(w, map[string]any{"success": true, "published": published})
}

type account struct {
	Handle    string    `json:"handle"`
	Name      string    `json:"name"`
	Summary   string    `json:"summary"`
	Followers int64     `json:"followers"`
	Following int64     `json:"following"`
	Posts     int64     `json:"posts"`
	CreatedAt time.Time `json:"created_at"`
}

func AccountsIndex(env *Env, w http.ResponseWriter, r *http.Request) error {
	accounts, err := models.NewAccounts(env.DB).All()
	if err != nil {
		return err
	}
	followers := models.NewFollowers(env.DB)
	following := models.NewFollowings(env.DB)
	posts := models.NewPosts(env.DB)
	resp := make([]account, 0, len(accounts))
	for _, a := range accounts {
		acc := account{
			Handle:    a.Handle,
			Name:      a.Name,
			Summary:   a.Summary,
			CreatedAt: a.CreatedAt.UTC(),
		}
		if acc.Followers, err = followers.Count(a.Handle); err != nil {
			return err
		}
		if acc.Following, err = following.CountAccepted(a.Handle); err != nil {
			return err
		}
		if acc.Posts, err = posts.CountPublic(a.Handle); err != nil {
			return err
		}
		resp = append(resp, acc)
	}
	return to.JSON(w, map[string]any{"accounts": resp})
}

func QueueProcess(env *Env, w http.ResponseWriter, r *http.Request) error {
	processed, err := activitypub.NewDelivery(env.Env).Drain(r.Context())
	if err != nil {
		return fmt.Errorf("process queue error: %w", err)
	}
	return to.JSON(w, map[string]any{"success": true, "processed": processed})
}

type followParams struct {
	Handle string `json:"handle" schema:"handle"`
	// Target is an actor URI or acct:user@host.
	Target string `json:"target" schema:"target"`
}

func (p *followParams) decode(r *http.Request) error {
	if err := paramsOf(r, p); err != nil {
		return err
	}
	if p.Handle == "" || p.Target == "" {
		return httpx.Error(http.StatusBadRequest, errors.New("handle and target are required"))
	}
	return nil
}

func FollowCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	var params followParams
	if err := params.decode(r); err != nil {
		return err
	}
	if _, err := models.NewAccounts(env.DB).Find(params.Handle); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpx.Error(http.StatusBadRequest, fmt.Errorf("account %s not found", params.Handle))
		}
		return err
	}
	actorID, err := activitypub.Follow(r.Context(), env.Env, params.Handle, params.Target)
	if err != nil {
		return remoteError(err)
	}
	return to.JSON(w, map[string]any{
		"success": true,
		"actorId": actorID,
		"message": "Follow request sent",
	})
}

func FollowDestroy(env *Env, w http.ResponseWriter, r *http.Request) error {
	var params followParams
	if err := params.decode(r); err != nil {
		return err
	}
	if err := activitypub.Unfollow(r.Context(), env.Env, params.Handle, params.Target); err != nil {
		return remoteError(err)
	}
	return to.JSON(w, map[string]any{
		"success": true,
		"message": "Unfollow request sent",
	})
}

// remoteError maps a failure to reach a remote actor to a status code.
func remoteError(err error) error {
	var netErr *activitypub.NetworkError
	switch {
	case errors.Is(err, activitypub.ErrNotFound):
		return httpx.Error(http.StatusNotFound, err)
	case errors.Is(err, activitypub.ErrProtocol), errors.As(err, &netErr):
		return httpx.Error(http.StatusBadGateway, err)
	default:
		return err
	}
}
