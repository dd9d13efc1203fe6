// Package workers contains the server's background loops.
package workers

import (
	"context"
	"time"

	"golang.org/x/exp/slog"
)

// every calls fn, then waits for interval, until ctx is canceled.
// Errors from fn are logged and the loop continues.
func every(ctx context.Context, log *slog.Logger, name string, interval time.Duration, fn func(context.Context) (int, error)) error {
	for {
		n, err := fn(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			log.Error("pass failed", "worker", name, "error", err)
		case n > 0:
			log.Info("pass complete", "worker", name, "processed", n)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
			// continue
		}
	}
}
