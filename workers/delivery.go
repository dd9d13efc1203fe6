package workers

import (
	"context"
	"time"

	"github.com/davecheney/fedipub/activitypub"
)

// NewDeliveryProcessor retries queued deliveries every interval.
func NewDeliveryProcessor(env *activitypub.Env, interval time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		delivery := activitypub.NewDelivery(env)
		return every(ctx, env.Log(), "delivery", interval, delivery.Drain)
	}
}

// NewPublishProcessor federates pending posts every interval.
func NewPublishProcessor(env *activitypub.Env, interval time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return every(ctx, env.Log(), "publish", interval, func(ctx context.Context) (int, error) {
			return activitypub.PublishAllPending(ctx, env, "")
		})
	}
}
