package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/davecheney/fedipub/activitypub"
	"github.com/davecheney/fedipub/models"
	"github.com/go-json-experiment/json"
)

// maxPushActivities is the most received activities mirrored per account
// in one push.
const maxPushActivities = 100

// profile is accounts/{handle}/profile.json.
type profile struct {
	Name                      string                `json:"name"`
	Summary                   string                `json:"summary"`
	Icon                      string                `json:"icon"`
	Image                     string                `json:"image"`
	ManuallyApprovesFollowers bool                  `json:"manuallyApprovesFollowers"`
	Discoverable              *bool                 `json:"discoverable"`
	Fields                    []models.ProfileField `json:"fields"`
}

// follower is an entry of accounts/{handle}/data/followers.json.
type follower struct {
	ActorURL       string    `json:"actorUrl"`
	InboxURL       string    `json:"inboxUrl"`
	SharedInboxURL *string   `json:"sharedInboxUrl,omitempty"`
	FollowedAt     time.Time `json:"followedAt"`
}

// following is an entry of accounts/{handle}/data/following.json.
type following struct {
	ActorURL    string     `json:"actorUrl"`
	InboxURL    string     `json:"inboxUrl"`
	Accepted    bool       `json:"accepted"`
	RequestedAt time.Time  `json:"requestedAt"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
}

// received is an entry of accounts/{handle}/data/received/*.json.
type received struct {
	ID         string    `json:"id"`
	ActorURL   string    `json:"actorUrl"`
	ObjectURL  string    `json:"objectUrl"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// receivedFiles names the file each mirrored activity type is kept in.
var receivedFiles = map[string]string{
	"Create":   "replies.json",
	"Like":     "likes.json",
	"Announce": "boosts.json",
}

// Syncer mirrors accounts between the repository and the database.
type Syncer struct {
	env *activitypub.Env
	gh  *Client
}

func NewSyncer(env *activitypub.Env, gh *Client) *Syncer {
	return &Syncer{env: env, gh: gh}
}

// Pull loads handle's profile, key, posts and relationships from the
// repository. If handle is empty every known account is pulled; if there
// are none, the accounts are discovered from the repository. Pull returns
// the number of items written.
func (s *Syncer) Pull(ctx context.Context, handle string) (int, error) {
	handles, err := s.handles(ctx, handle)
	if err != nil {
		return 0, err
	}
	synced := 0
	for _, h := range handles {
		n, err := s.pullAccount(ctx, h)
		synced += n
		if err != nil {
			return synced, fmt.Errorf("pull %s: %w", h, err)
		}
	}
	s.env.Log().Info("pulled from github", "accounts", len(handles), "synced", synced)
	return synced, nil
}

func (s *Syncer) handles(ctx context.Context, handle string) ([]string, error) {
	if handle != "" {
		return []string{handle}, nil
	}
	handles, err := models.NewAccounts(s.env.DB).Handles()
	if err != nil || len(handles) > 0 {
		return handles, err
	}
	entries, err := s.gh.List(ctx, "accounts")
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	for _, e := range entries {
		if e.Type == "dir" {
			handles = append(handles, e.Name)
		}
	}
	return handles, nil
}

func (s *Syncer) pullAccount(ctx context.Context, handle string) (int, error) {
	synced := 0
	base := path.Join("accounts", handle)

	ok, err := s.pullProfile(ctx, handle)
	if err != nil {
		return synced, err
	}
	if ok {
		synced++
	}

	n, err := s.pullPosts(ctx, handle)
	synced += n
	if err != nil {
		return synced, err
	}

	var followers []follower
	ok, err = s.getJSON(ctx, path.Join(base, "data", "followers.json"), &followers)
	if err != nil {
		return synced, err
	}
	if ok {
		rows := make([]*models.Follower, 0, len(followers))
		for _, f := range followers {
			rows = append(rows, &models.Follower{
				ActorURL:       f.ActorURL,
				InboxURL:       f.InboxURL,
				SharedInboxURL: f.SharedInboxURL,
				FollowedAt:     f.FollowedAt,
			})
		}
		if err := models.NewFollowers(s.env.DB).Replace(handle, rows); err != nil {
			return synced, err
		}
		synced++
	}

	var follows []following
	ok, err = s.getJSON(ctx, path.Join(base, "data", "following.json"), &follows)
	if err != nil {
		return synced, err
	}
	if ok {
		rows := make([]*models.Following, 0, len(follows))
		for _, f := range follows {
			rows = append(rows, &models.Following{
				ActorURL:    f.ActorURL,
				InboxURL:    f.InboxURL,
				Accepted:    f.Accepted,
				RequestedAt: f.RequestedAt,
				AcceptedAt:  f.AcceptedAt,
			})
		}
		if err := models.NewFollowings(s.env.DB).Replace(handle, rows); err != nil {
			return synced, err
		}
		synced++
	}
	return synced, nil
}

func (s *Syncer) pullProfile(ctx context.Context, handle string) (bool, error) {
	var p profile
	ok, err := s.getJSON(ctx, path.Join("accounts", handle, "profile.json"), &p)
	if err != nil || !ok {
		return false, err
	}
	var publicKey string
	key, err := s.gh.GetFile(ctx, path.Join("accounts", handle, "public_key.pem"))
	switch {
	case err == nil:
		publicKey = string(key.Content)
	case !errors.Is(err, ErrNotFound):
		return false, err
	}
	account := &models.Account{
		Handle:                    handle,
		Name:                      p.Name,
		Summary:                   p.Summary,
		IconURL:                   s.mediaURL(handle, p.Icon),
		ImageURL:                  s.mediaURL(handle, p.Image),
		PublicKey:                 publicKey,
		ManuallyApprovesFollowers: p.ManuallyApprovesFollowers,
		Discoverable:              p.Discoverable == nil || *p.Discoverable,
		Fields:                    p.Fields,
	}
	if account.Name == "" {
		account.Name = handle
	}
	return true, models.NewAccounts(s.env.DB).Save(account)
}

// pullPosts replaces handle's posts with those in the repository.
func (s *Syncer) pullPosts(ctx context.Context, handle string) (int, error) {
	dir := path.Join("accounts", handle, "posts")
	entries, err := s.gh.List(ctx, dir)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	posts := models.NewPosts(s.env.DB)
	var ids []string
	for _, e := range entries {
		if e.Type != "file" || !strings.HasSuffix(e.Name, ".md") {
			continue
		}
		f, err := s.gh.GetFile(ctx, path.Join(dir, e.Name))
		if err != nil {
			return len(ids), err
		}
		post, err := ParsePost(f.Content, e.Name, handle, s.env.Domain)
		if err != nil {
			s.env.Log().Error("skipping post", "handle", handle, "file", e.Name, "error", err)
			continue
		}
		if err := posts.Save(post); err != nil {
			return len(ids), err
		}
		ids = append(ids, post.ID)
	}
	deleted, err := posts.DeleteExcept(handle, ids)
	if err != nil {
		return len(ids), err
	}
	if deleted > 0 {
		s.env.Log().Info("deleted posts", "handle", handle, "count", deleted)
	}
	return len(ids), nil
}

func (s *Syncer) mediaURL(handle, name string) string {
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "http"):
		return name
	default:
		return fmt.Sprintf("https://%s/media/%s/%s", s.env.Domain, handle, name)
	}
}

// getJSON decodes the file at path into v. It reports false if there is
// no such file.
func (s *Syncer) getJSON(ctx context.Context, path string, v any) (bool, error) {
	f, err := s.gh.GetFile(ctx, path)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	if err := json.Unmarshal(f.Content, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// Push writes every account's followers, following, and newly received
// activities to the repository. Files whose content is unchanged are not
// written. Push returns the number of files written.
func (s *Syncer) Push(ctx context.Context) (int, error) {
	handles, err := models.NewAccounts(s.env.DB).Handles()
	if err != nil {
		return 0, err
	}
	synced := 0
	for _, h := range handles {
		n, err := s.pushAccount(ctx, h)
		synced += n
		if err != nil {
			return synced, fmt.Errorf("push %s: %w", h, err)
		}
	}
	s.env.Log().Info("pushed to github", "accounts", len(handles), "synced", synced)
	return synced, nil
}

func (s *Syncer) pushAccount(ctx context.Context, handle string) (int, error) {
	synced := 0
	base := path.Join("accounts", handle, "data")

	followers, err := models.NewFollowers(s.env.DB).All(handle)
	if err != nil {
		return synced, err
	}
	fs := make([]follower, 0, len(followers))
	for _, f := range followers {
		fs = append(fs, follower{
			ActorURL:       f.ActorURL,
			InboxURL:       f.InboxURL,
			SharedInboxURL: f.SharedInboxURL,
			FollowedAt:     f.FollowedAt.UTC(),
		})
	}
	ok, err := s.putJSON(ctx, path.Join(base, "followers.json"), fs, "Sync followers")
	if err != nil {
		return synced, err
	}
	if ok {
		synced++
	}

	follows, err := models.NewFollowings(s.env.DB).All(handle)
	if err != nil {
		return synced, err
	}
	fl := make([]following, 0, len(follows))
	for _, f := range follows {
		fl = append(fl, following{
			ActorURL:    f.ActorURL,
			InboxURL:    f.InboxURL,
			Accepted:    f.Accepted,
			RequestedAt: f.RequestedAt.UTC(),
			AcceptedAt:  f.AcceptedAt,
		})
	}
	ok, err = s.putJSON(ctx, path.Join(base, "following.json"), fl, "Sync following")
	if err != nil {
		return synced, err
	}
	if ok {
		synced++
	}

	n, err := s.pushReceived(ctx, handle)
	return synced + n, err
}

// pushReceived appends handle's unsynced activities to the received
// files and marks them synced.
func (s *Syncer) pushReceived(ctx context.Context, handle string) (int, error) {
	activities := models.NewInboxActivities(s.env.DB)
	unsynced, err := activities.Unsynced(handle, maxPushActivities)
	if err != nil || len(unsynced) == 0 {
		return 0, err
	}
	byType := make(map[string][]received)
	var types []string
	ids := make([]string, 0, len(unsynced))
	for _, a := range unsynced {
		ids = append(ids, a.ID)
		if _, ok := receivedFiles[a.Type]; !ok {
			continue
		}
		if _, ok := byType[a.Type]; !ok {
			types = append(types, a.Type)
		}
		byType[a.Type] = append(byType[a.Type], received{
			ID:         a.ID,
			ActorURL:   a.ActorURL,
			ObjectURL:  a.ObjectURL,
			ReceivedAt: a.ReceivedAt.UTC(),
		})
	}

	synced := 0
	for _, typ := range types {
		p := path.Join("accounts", handle, "data", "received", receivedFiles[typ])
		var all []received
		if _, err := s.getJSON(ctx, p, &all); err != nil {
			return synced, err
		}
		all = append(all, byType[typ]...)
		ok, err := s.putJSON(ctx, p, all, "Sync "+typ)
		if err != nil {
			return synced, err
		}
		if ok {
			synced++
		}
	}
	return synced, activities.MarkSynced(ids)
}

func (s *Syncer) putJSON(ctx context.Context, path string, v any, message string) (bool, error) {
	var buf bytes.Buffer
	err := json.MarshalOptions{}.MarshalFull(json.EncodeOptions{
		Indent: "  ",
	}, &buf, v)
	if err != nil {
		return false, err
	}
	return s.gh.PutFile(ctx, path, buf.Bytes(), message)
}
