package main

import (
	"context"
	"errors"
	"fmt"
)

type SyncCmd struct {
	Direction string `help:"from_github or to_github" enum:"from_github,to_github" default:"from_github"`
	Handle    string `help:"pull only this account"`
}

func (s *SyncCmd) Run(ctx *Context) error {
	env, closeEnv, err := ctx.newEnv()
	if err != nil {
		return err
	}
	defer closeEnv()

	syncer := ctx.newSyncer(env)
	if syncer == nil {
		return errors.New("no content repository configured, set --github-repo")
	}
	var synced int
	switch s.Direction {
	case "to_github":
		synced, err = syncer.Push(context.Background())
	default:
		synced, err = syncer.Pull(context.Background(), s.Handle)
	}
	if err != nil {
		return err
	}
	fmt.Println("synced", synced, "items", s.Direction)
	return nil
}
