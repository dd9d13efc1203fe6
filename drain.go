package main

import (
	"context"
	"fmt"

	"github.com/davecheney/fedipub/activitypub"
)

type DrainCmd struct {
}

func (d *DrainCmd) Run(ctx *Context) error {
	env, closeEnv, err := ctx.newEnv()
	if err != nil {
		return err
	}
	defer closeEnv()

	processed, err := activitypub.NewDelivery(env).Drain(context.Background())
	if err != nil {
		return err
	}
	fmt.Println("processed", processed, "deliveries")
	return nil
}
