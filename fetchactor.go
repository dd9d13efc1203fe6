package main

import (
	"context"
	"fmt"
	"os"

	"github.com/davecheney/fedipub/activitypub"
	"github.com/go-json-experiment/json"
)

type FetchActorCmd struct {
	Account string `help:"local account to sign the request as"`
	Actor   string `arg:"" help:"actor URI or acct:user@host to fetch"`
}

func (f *FetchActorCmd) Run(ctx *Context) error {
	env, closeEnv, err := ctx.newEnv()
	if err != nil {
		return err
	}
	defer closeEnv()

	actor, err := activitypub.NewResolver(env, f.Account).ResolveAndCache(context.Background(), f.Actor)
	if err != nil {
		return fmt.Errorf("failed to fetch actor: %w", err)
	}
	var doc any
	if err := json.Unmarshal([]byte(actor.JSON), &doc); err != nil {
		return err
	}
	return json.MarshalOptions{}.MarshalFull(json.EncodeOptions{
		Indent: "  ",
	}, os.Stdout, doc)
}
