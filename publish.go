package main

import (
	"context"
	"fmt"

	"github.com/davecheney/fedipub/activitypub"
)

type PublishCmd struct {
	Handle string `help:"publish only this account's posts"`
	ID     string `help:"publish this post, whether or not it was published before"`
}

func (p *PublishCmd) Run(ctx *Context) error {
	env, closeEnv, err := ctx.newEnv()
	if err != nil {
		return err
	}
	defer closeEnv()

	if p.ID != "" {
		if p.Handle == "" {
			return fmt.Errorf("--handle is required with --id")
		}
		ok, err := activitypub.PublishPost(context.Background(), env, p.Handle, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("post %s/%s not found", p.Handle, p.ID)
		}
		fmt.Println("published", p.Handle, p.ID)
		return nil
	}
	published, err := activitypub.PublishAllPending(context.Background(), env, p.Handle)
	if err != nil {
		return err
	}
	fmt.Println("published", published, "posts")
	return nil
}
