package main

import (
	"context"
	"fmt"

	"github.com/davecheney/fedipub/activitypub"
)

type FollowCmd struct {
	Handle string `required:"" help:"local account which follows"`
	Target string `arg:"" help:"actor URI or acct:user@host to follow"`
}

func (f *FollowCmd) Run(ctx *Context) error {
	env, closeEnv, err := ctx.newEnv()
	if err != nil {
		return err
	}
	defer closeEnv()

	actorID, err := activitypub.Follow(context.Background(), env, f.Handle, f.Target)
	if err != nil {
		return err
	}
	fmt.Println("follow request sent to", actorID)
	return nil
}

type UnfollowCmd struct {
	Handle string `required:"" help:"local account which unfollows"`
	Target string `arg:"" help:"actor URI or acct:user@host to unfollow"`
}

func (u *UnfollowCmd) Run(ctx *Context) error {
	env, closeEnv, err := ctx.newEnv()
	if err != nil {
		return err
	}
	defer closeEnv()

	return activitypub.Unfollow(context.Background(), env, u.Handle, u.Target)
}
