package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/davecheney/fedipub/activitypub"
	"github.com/davecheney/fedipub/admin"
	"github.com/davecheney/fedipub/feed"
	"github.com/davecheney/fedipub/internal/github"
	"github.com/davecheney/fedipub/internal/group"
	"github.com/davecheney/fedipub/internal/httpx"
	"github.com/davecheney/fedipub/media"
	"github.com/davecheney/fedipub/wellknown"
	"github.com/davecheney/fedipub/workers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ServeCmd struct {
	Addr            string        `help:"address to listen" default:":8080" env:"ADDR"`
	AdminToken      string        `help:"bearer token, or its bcrypt hash, for the admin API" env:"ADMIN_TOKEN"`
	DrainInterval   time.Duration `help:"interval between delivery queue drains" default:"5m" env:"DRAIN_INTERVAL"`
	PublishInterval time.Duration `help:"interval between publishing pending posts, zero to disable" default:"0s" env:"PUBLISH_INTERVAL"`
	SyncDelay       time.Duration `help:"delay before pushing inbox changes to the content repository" default:"5s"`
}

func (s *ServeCmd) Run(ctx *Context) error {
	env, closeEnv, err := ctx.newEnv()
	if err != nil {
		return err
	}
	defer closeEnv()

	sigctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g := group.New(sigctx, env.Log())

	adminEnv := &admin.Env{Env: env, Token: s.AdminToken}
	var gh *github.Client
	if syncer := ctx.newSyncer(env); syncer != nil {
		adminEnv.Syncer = syncer
		gh = ctx.newGitHub()
		sync := workers.NewSyncProcessor(syncer, s.SyncDelay, env.Log())
		env.Changed = sync.Trigger
		g.Add("sync", sync.Run)
	}

	svr := &http.Server{
		Addr:         s.Addr,
		Handler:      newRouter(env, adminEnv, gh),
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	g.Add("http", func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			svr.Shutdown(shutdown)
		}()
		env.Log().Info("listening", "addr", s.Addr, "domain", env.Domain)
		if err := svr.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Add("delivery", workers.NewDeliveryProcessor(env, s.DrainInterval))
	if s.PublishInterval > 0 {
		g.Add("publish", workers.NewPublishProcessor(env, s.PublishInterval))
	}
	return g.Wait()
}

// newRouter returns the server's routes. If gh is nil media is not served.
func newRouter(env *activitypub.Env, adminEnv *admin.Env, gh *github.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/.well-known", func(r chi.Router) {
		r.Get("/webfinger", httpx.HandlerFunc(env, wellknown.WebfingerShow))
		r.Get("/host-meta", httpx.HandlerFunc(env, wellknown.HostMetaIndex))
		r.Get("/nodeinfo", httpx.HandlerFunc(env, wellknown.NodeInfoIndex))
	})
	r.Get("/nodeinfo/2.1", httpx.HandlerFunc(env, wellknown.NodeInfoShow))

	r.Post("/inbox", httpx.HandlerFunc(env, activitypub.SharedInboxCreate))
	r.Route("/users/{handle}", func(r chi.Router) {
		r.Get("/", httpx.HandlerFunc(env, activitypub.UsersShow))
		r.Post("/inbox", httpx.HandlerFunc(env, activitypub.InboxCreate))
		r.Get("/outbox", httpx.HandlerFunc(env, activitypub.Outbox))
		r.Get("/followers", httpx.HandlerFunc(env, activitypub.Followers))
		r.Get("/following", httpx.HandlerFunc(env, activitypub.Following))
		r.Get("/posts/{id}", httpx.HandlerFunc(env, activitypub.NotesShow))
		r.Get("/posts/{id}/activity", httpx.HandlerFunc(env, activitypub.NoteActivityShow))
	})

	profile := httpx.HandlerFunc(env, activitypub.ProfileShow)
	atom := httpx.HandlerFunc(env, feed.Show)
	r.Get("/@{handle}", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(chi.URLParam(r, "handle"), ".atom") {
			atom(w, r)
			return
		}
		profile(w, r)
	})
	r.Get("/@{handle}/{id}", httpx.HandlerFunc(env, activitypub.PostShow))

	if gh != nil {
		r.Get("/media/{handle}/*", httpx.HandlerFunc(gh, media.Show))
	}
	r.Mount("/admin", admin.Routes(adminEnv))

	r.Get("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "User-agent: *\nDisallow: /media/\n")
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s is an ActivityPub server\n", env.Domain)
	})
	return r
}
