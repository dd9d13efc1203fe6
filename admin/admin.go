// Package admin implements the operator API. Every request must carry
// the admin token as a bearer token.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/davecheney/fedipub/activitypub"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/internal/to"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

// A Syncer mirrors accounts to and from the content repository.
type Syncer interface {
	Pull(ctx context.Context, handle string) (int, error)
	Push(ctx context.Context) (int, error)
}

type Env struct {
	*activitypub.Env

	// Syncer is nil if no content repository is configured.
	Syncer Syncer

	// Token is the admin token, either verbatim or as a bcrypt hash.
	// If empty, every request is refused.
	Token string
}

// Routes returns the admin API, to be mounted under /admin.
func Routes(env *Env) chi.Router {
	r := chi.NewRouter()
	r.Use(Authenticate(env.Token))
	r.Post("/sync", HandlerFunc(env, SyncCreate))
	r.Post("/publish", HandlerFunc(env, PublishCreate))
	r.Get("/accounts", HandlerFunc(env, AccountsIndex))
	r.Post("/process-queue", HandlerFunc(env, QueueProcess))
	r.Post("/follow", HandlerFunc(env, FollowCreate))
	r.Post("/unfollow", HandlerFunc(env, FollowDestroy))
	return r
}

// Authenticate rejects requests whose bearer token does not match token.
func Authenticate(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || !validToken(token, strings.TrimSpace(bearer)) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				writeError(w, httpx.Error(http.StatusUnauthorized, errors.New("unauthorized")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validToken(token, bearer string) bool {
	switch {
	case token == "" || bearer == "":
		return false
	case isBcrypt(token):
		return bcrypt.CompareHashAndPassword([]byte(token), []byte(bearer)) == nil
	default:
		return subtle.ConstantTimeCompare([]byte(token), []byte(bearer)) == 1
	}
}

func isBcrypt(token string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// HandlerFunc adapts fn to an http.HandlerFunc which reports errors as
// {"success":false,"error":"..."}.
func HandlerFunc(env *Env, fn func(*Env, http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(env, w, r); err != nil {
			code := httpx.StatusCode(err)
			log := env.Log().With("method", r.Method, "path", r.URL.Path, "status", code)
			if code >= 500 {
				log.Error("admin error", "error", err)
			} else {
				log.Info("admin error", "error", err)
			}
			writeError(w, err)
		}
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpx.StatusCode(err))
	to.JSON(w, &errorResponse{Error: err.Error()})
}
