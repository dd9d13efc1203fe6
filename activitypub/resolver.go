package activitypub

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"time"

	"github.com/davecheney/fedipub/internal/activitypub"
	"github.com/davecheney/fedipub/internal/httpsig"
	"github.com/davecheney/fedipub/internal/webfinger"
	"github.com/davecheney/fedipub/models"
	"github.com/go-json-experiment/json"
	"gorm.io/gorm"
)

const fetchTimeout = 10 * time.Second

var (
	// ErrProtocol is returned when a remote does not advertise an
	// ActivityPub actor for an account.
	ErrProtocol = errors.New("no ActivityPub actor")

	// ErrNotFound is returned when the remote actor does not exist.
	ErrNotFound = activitypub.ErrNotFound
)

// NetworkError is returned when a remote actor could not be fetched.
type NetworkError = activitypub.NetworkError

// Actor is the subset of a remote actor document the server uses.
type Actor struct {
	ID                string
	Inbox             string
	SharedInbox       string
	PreferredUsername string
	Name              string
	IconURL           string
	PublicKeyPEM      string

	// JSON is the document as fetched.
	JSON string
}

// DeliveryInbox returns the actor's shared inbox if it has one,
// otherwise its personal inbox.
func (a *Actor) DeliveryInbox() string {
	if a.SharedInbox != "" {
		return a.SharedInbox
	}
	return a.Inbox
}

func (a *Actor) sharedInbox() *string {
	if a.SharedInbox == "" {
		return nil
	}
	s := a.SharedInbox
	return &s
}

// Resolver fetches remote actors.
type Resolver struct {
	env    *Env
	client *activitypub.Client
}

// NewResolver returns a Resolver whose requests are signed as signAs.
// If signAs is empty requests are unsigned.
func NewResolver(env *Env, signAs string) *Resolver {
	return &Resolver{
		env:    env,
		client: env.Client(signAs),
	}
}

// Resolve fetches the actor named by ref. ref may be an actor URI, or
// an account in the form acct:user@domain, user@domain or @user@domain.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Actor, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	uri := ref
	if webfinger.IsAcct(ref) {
		var err error
		uri, err = r.lookup(ctx, ref)
		if err != nil {
			return nil, err
		}
	}
	body, err := r.client.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	return parseActor(body)
}

// ResolveAndCache resolves ref and, if the actor publishes a key,
// writes it through to the actor cache.
func (r *Resolver) ResolveAndCache(ctx context.Context, ref string) (*Actor, error) {
	actor, err := r.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if actor.PublicKeyPEM == "" {
		return actor, nil
	}
	err = models.NewActorCache(r.env.DB).Save(&models.CachedActor{
		ActorURL:          actor.ID,
		InboxURL:          actor.Inbox,
		SharedInboxURL:    actor.SharedInbox,
		PublicKeyPEM:      actor.PublicKeyPEM,
		Name:              actor.Name,
		PreferredUsername: actor.PreferredUsername,
		IconURL:           actor.IconURL,
	})
	if err != nil {
		return nil, fmt.Errorf("cache actor %s: %w", actor.ID, err)
	}
	return actor, nil
}

func (r *Resolver) lookup(ctx context.Context, ref string) (string, error) {
	acct, err := webfinger.Parse(ref)
	if err != nil {
		return "", err
	}
	if acct.Host == "" {
		return "", fmt.Errorf("%w: %q has no domain", ErrProtocol, ref)
	}
	wf, err := acct.Fetch(ctx, r.env.Transport)
	if err != nil {
		return "", &NetworkError{URL: acct.Webfinger(), Err: err}
	}
	href, err := wf.ActivityPub()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrProtocol, acct)
	}
	return href, nil
}

func parseActor(body []byte) (*Actor, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode actor: %w", err)
	}
	actor := &Actor{
		ID:                stringFromAny(obj["id"]),
		Inbox:             stringFromAny(obj["inbox"]),
		SharedInbox:       stringFromAny(mapFromAny(obj["endpoints"])["sharedInbox"]),
		PreferredUsername: stringFromAny(obj["preferredUsername"]),
		Name:              stringFromAny(obj["name"]),
		IconURL:           iconURL(obj["icon"]),
		PublicKeyPEM:      stringFromAny(mapFromAny(obj["publicKey"])["publicKeyPem"]),
		JSON:              string(body),
	}
	if actor.SharedInbox == "" {
		actor.SharedInbox = stringFromAny(obj["sharedInbox"])
	}
	if actor.ID == "" || actor.Inbox == "" {
		return nil, errors.New("decode actor: missing id or inbox")
	}
	return actor, nil
}

// iconURL returns the url of an icon given as a string, an object, or
// a list of either.
func iconURL(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case map[string]any:
		return idFromAny(v["url"])
	case []any:
		if len(v) > 0 {
			return iconURL(v[0])
		}
	}
	return ""
}

// GetKey returns a function which resolves signature key ids to public
// keys. Keys are taken from the actor cache; on a miss the actor is
// fetched, signed as handle, and cached.
func (e *Env) GetKey(ctx context.Context, handle string) httpsig.KeyFunc {
	return func(keyID string) (crypto.PublicKey, error) {
		actorURL := trimKeyId(keyID)
		cached, err := models.NewActorCache(e.DB).Find(actorURL, e.ActorCacheTTL)
		switch {
		case err == nil:
			return pemToPublicKey(cached.PublicKeyPEM)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
		actor, err := NewResolver(e, handle).ResolveAndCache(ctx, actorURL)
		if err != nil {
			return nil, err
		}
		if actor.PublicKeyPEM == "" {
			return nil, fmt.Errorf("actor %s has no public key", actor.ID)
		}
		return pemToPublicKey(actor.PublicKeyPEM)
	}
}
