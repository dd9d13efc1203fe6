// Package activitypub implements the federation side of the server:
// actor documents and collections, the inbox, outbound activities and
// their delivery.
package activitypub

import (
	"crypto"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/davecheney/fedipub/internal/activitypub"
	icrypto "github.com/davecheney/fedipub/internal/crypto"
	"github.com/davecheney/fedipub/internal/lock"
	"golang.org/x/exp/slog"
	"gorm.io/gorm"
)

// Public is the special collection addressing everyone.
const Public = "https://www.w3.org/ns/activitystreams#Public"

type Env struct {
	// DB is the database connection.
	DB     *gorm.DB
	Logger *slog.Logger

	// Domain is the host name local actors live on.
	Domain string

	// Keys holds the private keys of local accounts.
	Keys icrypto.KeyStore

	// Locker guards the delivery queue against concurrent drains.
	// If nil, a process local lock is used.
	Locker lock.Locker

	// Transport is used for all outbound requests.
	// If nil, http.DefaultTransport is used.
	Transport http.RoundTripper

	// ActorCacheTTL is how long a cached actor key is trusted when
	// verifying signatures. Zero means forever.
	ActorCacheTTL time.Duration

	// Changed, if set, is called after an inbound activity has been
	// applied to handle's state.
	Changed func(handle string)

	local lock.Local
}

func (e *Env) Log() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// ActorURL returns the id of the local actor for handle.
func (e *Env) ActorURL(handle string) string {
	return fmt.Sprintf("https://%s/users/%s", e.Domain, handle)
}

// KeyID returns the id of handle's public key.
func (e *Env) KeyID(handle string) string {
	return e.ActorURL(handle) + "#main-key"
}

// Client returns an ActivityPub client which signs as handle.
// If handle is empty, or there is no key store, requests are unsigned.
func (e *Env) Client(handle string) *activitypub.Client {
	if handle == "" || e.Keys == nil {
		return activitypub.NewClient(nil, e.Transport)
	}
	return activitypub.NewClient(&accountSigner{env: e, handle: handle}, e.Transport)
}

func (e *Env) locker() lock.Locker {
	if e.Locker == nil {
		return &e.local
	}
	return e.Locker
}

func (e *Env) changed(handle string) {
	if e.Changed != nil {
		e.Changed(handle)
	}
}

// accountSigner signs requests as a local account.
type accountSigner struct {
	env    *Env
	handle string
}

func (s *accountSigner) PublicKeyID() string {
	return s.env.KeyID(s.handle)
}

func (s *accountSigner) PrivKey() (*rsa.PrivateKey, error) {
	return s.env.Keys.PrivateKey(s.handle)
}

func pemToPublicKey(key string) (crypto.PublicKey, error) {
	return icrypto.ParseRSAPublicKey([]byte(key))
}

// trimKeyId removes the #main-key suffix from the key id.
func trimKeyId(id string) string {
	if i := strings.Index(id, "#"); i != -1 {
		return id[:i]
	}
	return id
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return s
}

func boolFromAny(v any) bool {
	b, _ := v.(bool)
	return b
}

func mapFromAny(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func anyToSlice(v any) []any {
	switch v := v.(type) {
	case []any:
		return v
	case nil:
		return nil
	default:
		return []any{v}
	}
}

// idFromAny returns v if it is a string, or its id if it is an object.
func idFromAny(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case map[string]any:
		return stringFromAny(v["id"])
	default:
		return ""
	}
}

// typeFromAny returns the type of v if it is an object.
func typeFromAny(v any) string {
	return stringFromAny(mapFromAny(v)["type"])
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseBool parses a boolean value from a request parameter.
// If the parameter is not present, or cannot be parsed, it returns false.
func parseBool(r *http.Request, key string) bool {
	switch r.URL.Query().Get(key) {
	case "true", "1":
		return true
	default:
		return false
	}
}
