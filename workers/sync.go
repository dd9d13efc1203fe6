package workers

import (
	"context"
	"time"

	"golang.org/x/exp/slog"
)

// A Pusher writes local state to the content repository.
type Pusher interface {
	Push(ctx context.Context) (int, error)
}

// SyncProcessor pushes to the content repository a short delay after it
// is triggered. Triggers which arrive while a push is pending are
// folded into it.
type SyncProcessor struct {
	pusher  Pusher
	delay   time.Duration
	log     *slog.Logger
	trigger chan struct{}
}

func NewSyncProcessor(pusher Pusher, delay time.Duration, log *slog.Logger) *SyncProcessor {
	return &SyncProcessor{
		pusher:  pusher,
		delay:   delay,
		log:     log,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger schedules a push. It never blocks. Its signature matches
// activitypub.Env.Changed.
func (s *SyncProcessor) Trigger(handle string) {
	select {
	case s.trigger <- struct{}{}:
	default:
		// a trigger is already waiting
	}
}

// Run pushes after each trigger until ctx is canceled.
func (s *SyncProcessor) Run(ctx context.Context) error {
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.trigger:
			if pending == nil {
				pending = time.After(s.delay)
			}
		case <-pending:
			pending = nil
			n, err := s.pusher.Push(ctx)
			if err != nil {
				s.log.Error("background sync failed", "error", err)
				continue
			}
			s.log.Info("background sync", "synced", n)
		}
	}
}
