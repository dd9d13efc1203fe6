package activitypub

import (
	"bytes"
	gocrypto "crypto"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/davecheney/fedipub/internal/crypto"
	"github.com/davecheney/fedipub/internal/httpsig"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDomain = "local.example"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	require := require.New(t)
	// each test gets its own database
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger: logger.Default.LogMode(func() logger.LogLevel {
			return logger.Warn
		}()),
	})
	require.NoError(err)

	sqlDB, err := db.DB()
	require.NoError(err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(models.AllTables()...)
	require.NoError(err)
	return db
}

// newTestEnv returns an Env with a single local account, alice, whose
// private key is returned. Outbound requests use transport.
func newTestEnv(t *testing.T, transport http.RoundTripper) (*Env, *rsa.PrivateKey) {
	t.Helper()
	require := require.New(t)

	db := setupTestDB(t)
	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)
	key, err := crypto.ParseRSAPrivateKey(kp.PrivateKey)
	require.NoError(err)

	require.NoError(models.NewAccounts(db).Save(&models.Account{
		Handle:       "alice",
		Name:         "Alice",
		PublicKey:    string(kp.PublicKey),
		Discoverable: true,
	}))

	return &Env{
		DB:        db,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Domain:    testDomain,
		Keys:      crypto.StaticKeys{"alice": kp.PrivateKey},
		Transport: transport,
	}, key
}

// newTestRouter mounts the federation handlers the way the server does.
func newTestRouter(env *Env) http.Handler {
	r := chi.NewRouter()
	r.Post("/inbox", httpx.HandlerFunc(env, SharedInboxCreate))
	r.Route("/users/{handle}", func(r chi.Router) {
		r.Get("/", httpx.HandlerFunc(env, UsersShow))
		r.Post("/inbox", httpx.HandlerFunc(env, InboxCreate))
		r.Get("/outbox", httpx.HandlerFunc(env, Outbox))
		r.Get("/followers", httpx.HandlerFunc(env, Followers))
		r.Get("/following", httpx.HandlerFunc(env, Following))
		r.Get("/posts/{id}", httpx.HandlerFunc(env, NotesShow))
		r.Get("/posts/{id}/activity", httpx.HandlerFunc(env, NoteActivityShow))
	})
	r.Get("/@{handle}", httpx.HandlerFunc(env, ProfileShow))
	r.Get("/@{handle}/{id}", httpx.HandlerFunc(env, PostShow))
	return r
}

// delivery is an activity received by a remote inbox.
type delivery struct {
	Path     string
	Activity map[string]any
}

// remote is a fake federated server hosting the actors bob, carol and
// dave. bob and carol share an inbox. Activities posted to its inboxes
// must be signed by the local key.
type remote struct {
	*httptest.Server
	t        *testing.T
	key      *rsa.PrivateKey
	pem      string
	localKey *rsa.PublicKey

	mu       sync.Mutex
	status   int
	received []delivery
}

func newRemote(t *testing.T, localKey *rsa.PublicKey) *remote {
	t.Helper()
	require := require.New(t)

	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)
	key, err := crypto.ParseRSAPrivateKey(kp.PrivateKey)
	require.NoError(err)

	rm := &remote{
		t:        t,
		key:      key,
		pem:      string(kp.PublicKey),
		localKey: localKey,
		status:   http.StatusAccepted,
	}
	r := chi.NewRouter()
	r.Get("/.well-known/webfinger", rm.webfinger)
	r.Get("/users/{name}", rm.actor)
	r.Post("/users/{name}/inbox", rm.inbox)
	r.Post("/inbox", rm.inbox)
	rm.Server = httptest.NewTLSServer(r)
	t.Cleanup(rm.Close)
	return rm
}

// Transport returns a transport which trusts the remote's certificate.
func (rm *remote) Transport() http.RoundTripper {
	return rm.Client().Transport
}

func (rm *remote) actorURL(name string) string {
	return rm.URL + "/users/" + name
}

// acct returns name's account reference on the remote.
func (rm *remote) acct(name string) string {
	return name + "@" + strings.TrimPrefix(rm.URL, "https://")
}

func (rm *remote) setStatus(code int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.status = code
}

func (rm *remote) deliveries() []delivery {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return append([]delivery(nil), rm.received...)
}

func (rm *remote) webfinger(w http.ResponseWriter, r *http.Request) {
	acct := strings.TrimPrefix(r.URL.Query().Get("resource"), "acct:")
	name, _, _ := strings.Cut(acct, "@")
	if name != "bob" && name != "carol" && name != "dave" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/jrd+json")
	json.MarshalFull(w, map[string]any{
		"subject": "acct:" + acct,
		"links": []any{
			map[string]any{"rel": "self", "type": "application/activity+json", "href": rm.actorURL(name)},
		},
	})
}

func (rm *remote) actor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	doc := map[string]any{
		"@context":          "https://www.w3.org/ns/activitystreams",
		"id":                rm.actorURL(name),
		"type":              "Person",
		"preferredUsername": name,
		"name":              strings.ToUpper(name[:1]) + name[1:],
		"inbox":             rm.actorURL(name) + "/inbox",
		"icon":              map[string]any{"type": "Image", "url": rm.URL + "/avatars/" + name + ".png"},
		"publicKey": map[string]any{
			"id":           rm.actorURL(name) + "#main-key",
			"owner":        rm.actorURL(name),
			"publicKeyPem": rm.pem,
		},
	}
	switch name {
	case "bob":
		doc["endpoints"] = map[string]any{"sharedInbox": rm.URL + "/inbox"}
	case "carol":
		doc["sharedInbox"] = rm.URL + "/inbox"
	case "dave":
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/activity+json")
	json.MarshalFull(w, doc)
}

func (rm *remote) inbox(w http.ResponseWriter, r *http.Request) {
	_, err := httpsig.Verify(r, func(keyID string) (gocrypto.PublicKey, error) {
		return rm.localKey, nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var activity map[string]any
	if err := json.UnmarshalFull(r.Body, &activity); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.status >= 300 {
		w.WriteHeader(rm.status)
		return
	}
	rm.received = append(rm.received, delivery{Path: r.URL.Path, Activity: activity})
	w.WriteHeader(rm.status)
}

// post sends activity to path on h, signed as the remote actor name.
func (rm *remote) post(h http.Handler, path, name string, activity map[string]any) *httptest.ResponseRecorder {
	rm.t.Helper()
	body, err := json.Marshal(activity)
	require.NoError(rm.t, err)
	return rm.postBody(h, path, name, body)
}

func (rm *remote) postBody(h http.Handler, path, name string, body []byte) *httptest.ResponseRecorder {
	rm.t.Helper()
	return serve(h, signedRequest(rm.t, rm, path, name, body))
}

// signedRequest returns a POST of body to path signed as the remote actor name.
func signedRequest(t *testing.T, rm *remote, path, name string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "https://"+testDomain+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")
	require.NoError(t, httpsig.Sign(req, rm.actorURL(name)+"#main-key", rm.key, body))
	return req
}

func httpPostUnsigned(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "https://"+testDomain+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")
	return serve(h, req)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func get(h http.Handler, target, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "https://"+testDomain+target, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return serve(h, req)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
