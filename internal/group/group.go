// package group manages the lifecycle of the server's goroutines.
package group

import (
	"context"
	"sync"

	"golang.org/x/exp/slog"
)

// A G manages the lifetime of a set of named goroutines from a common context.
// The first goroutine in the group to return will cause the context to be canceled,
// terminating the remaining goroutines.
type G struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   sync.WaitGroup
	log    *slog.Logger

	errOnce sync.Once
	err     error
}

// New returns a new group using the given context.
func New(ctx context.Context, log *slog.Logger) *G {
	ctx, cancel := context.WithCancel(ctx)
	return &G{
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// Add adds a new goroutine to the group.
// fn should return when the context passed to it is canceled.
func (g *G) Add(name string, fn func(context.Context) error) {
	g.done.Add(1)
	go func() {
		defer g.done.Done()
		defer g.cancel()
		g.log.Info("started", "worker", name)
		err := fn(g.ctx)
		if err != nil {
			g.errOnce.Do(func() { g.err = err })
			g.log.Error("stopped", "worker", name, "error", err)
			return
		}
		g.log.Info("stopped", "worker", name)
	}()
}

// Wait waits for all goroutines in the group to exit.
// If any of the goroutines fail with an error, Wait will return the first error.
func (g *G) Wait() error {
	g.done.Wait()
	g.errOnce.Do(func() {
		// noop, required to synchronise on the errOnce mutex.
	})
	return g.err
}
