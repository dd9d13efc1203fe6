package main

import (
	"context"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/davecheney/fedipub/activitypub"
	"github.com/davecheney/fedipub/internal/crypto"
	"github.com/davecheney/fedipub/internal/github"
	"github.com/davecheney/fedipub/internal/lock"
	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Context struct {
	Debug  bool
	Logger *slog.Logger

	Dialector gorm.Dialector
	gorm.Config

	Domain        string
	KeysDir       string
	RedisURL      string
	ActorCacheTTL time.Duration
	GitHubRepo    string
	GitHubToken   string
}

var cli struct {
	Debug         bool          `help:"Enable debug mode." env:"DEBUG"`
	DSN           string        `help:"Data source name of the database." required:"" env:"DSN"`
	Domain        string        `help:"Domain name of the instance." required:"" env:"DOMAIN"`
	KeysDir       string        `help:"Directory of {handle}.pem private keys." env:"KEYS_DIR"`
	RedisURL      string        `help:"Redis URL used to coordinate queue drains between processes." env:"REDIS_URL"`
	ActorCacheTTL time.Duration `help:"How long cached actor keys are trusted, zero for ever." default:"0s" env:"ACTOR_CACHE_TTL"`
	GitHubRepo    string        `help:"owner/name of the content repository." name:"github-repo" env:"GITHUB_REPO"`
	GitHubToken   string        `help:"Access token for the content repository." name:"github-token" env:"GITHUB_TOKEN"`

	AutoMigrate   AutoMigrateCmd   `cmd:"" help:"Automatically migrate the database."`
	CreateAccount CreateAccountCmd `cmd:"" help:"Create a local account."`
	Drain         DrainCmd         `cmd:"" help:"Retry queued deliveries which are due."`
	FetchActor    FetchActorCmd    `cmd:"" help:"Fetch and cache a remote actor."`
	Follow        FollowCmd        `cmd:"" help:"Follow a remote actor."`
	HouseKeeping  HouseKeepingCmd  `cmd:"" help:"Purge exhausted deliveries and old mirrored activities."`
	Publish       PublishCmd       `cmd:"" help:"Federate pending posts."`
	Serve         ServeCmd         `cmd:"" help:"Serve a local web server."`
	Sync          SyncCmd          `cmd:"" help:"Synchronise with the content repository."`
	Unfollow      UnfollowCmd      `cmd:"" help:"Unfollow a remote actor."`
}

func main() {
	// a missing .env is not an error
	_ = godotenv.Load()

	ctx := kong.Parse(&cli)

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	err := ctx.Run(&Context{
		Debug:     cli.Debug,
		Logger:    log,
		Dialector: newDialector(cli.DSN),
		Config: gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(gormLogLevel(cli.Debug)),
		},
		Domain:        cli.Domain,
		KeysDir:       cli.KeysDir,
		RedisURL:      cli.RedisURL,
		ActorCacheTTL: cli.ActorCacheTTL,
		GitHubRepo:    cli.GitHubRepo,
		GitHubToken:   cli.GitHubToken,
	})
	ctx.FatalIfErrorf(err)
}

func gormLogLevel(debug bool) logger.LogLevel {
	if debug {
		return logger.Info
	}
	return logger.Warn
}

// openDB opens and configures the database.
func (c *Context) openDB() (*gorm.DB, error) {
	db, err := gorm.Open(c.Dialector, &c.Config)
	if err != nil {
		return nil, err
	}
	return db, configureDB(db)
}

// newEnv returns the federation environment. The returned func releases
// its resources.
func (c *Context) newEnv() (*activitypub.Env, func(), error) {
	db, err := c.openDB()
	if err != nil {
		return nil, nil, err
	}
	keys := crypto.Keys{crypto.KeysFromEnviron(os.Environ(), "PRIVATE_KEY_")}
	if c.KeysDir != "" {
		keys = append(keys, crypto.DirKeys(c.KeysDir))
	}
	env := &activitypub.Env{
		DB:            db,
		Logger:        c.Logger,
		Domain:        c.Domain,
		Keys:          keys,
		ActorCacheTTL: c.ActorCacheTTL,
	}
	closers := []func() error{}
	if c.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		locker, err := lock.DialRedis(ctx, c.RedisURL)
		cancel()
		if err != nil {
			return nil, nil, err
		}
		env.Locker = locker
		closers = append(closers, locker.Close)
	}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, sqlDB.Close)
	}
	return env, func() {
		for _, fn := range closers {
			if err := fn(); err != nil {
				c.Logger.Error("close", "error", err)
			}
		}
	}, nil
}

// newSyncer returns the content repository mirror, or nil if there is
// no repository configured.
func (c *Context) newSyncer(env *activitypub.Env) *github.Syncer {
	if c.GitHubRepo == "" {
		return nil
	}
	return github.NewSyncer(env, c.newGitHub())
}

func (c *Context) newGitHub() *github.Client {
	return github.NewClient(c.GitHubRepo, c.GitHubToken, nil)
}
