package activitypub

import (
	"context"
	"fmt"
	"time"

	"github.com/davecheney/fedipub/models"
	"github.com/go-json-experiment/json"
)

const (
	deliveryTimeout = 30 * time.Second

	// drainBatch is the maximum number of queued items attempted per drain.
	drainBatch = 50

	// drainLease is how long a drain holds the queue before another
	// drain may start. It outlasts a batch in which every send times out.
	drainLease = drainBatch*deliveryTimeout + time.Minute
)

// Delivery sends activities to remote inboxes, queueing those which
// fail for retry.
type Delivery struct {
	env   *Env
	queue *models.DeliveryQueue
}

func NewDelivery(env *Env) *Delivery {
	return &Delivery{
		env:   env,
		queue: models.NewDeliveryQueue(env.DB),
	}
}

// Deliver signs activity as handle and posts it to inbox. If delivery
// fails the activity is queued for retry; only a failure to queue is
// returned.
func (d *Delivery) Deliver(ctx context.Context, handle string, activity map[string]any, inbox string) error {
	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	if err := d.send(ctx, handle, inbox, body); err != nil {
		d.env.Log().Info("delivery failed, queued for retry", "handle", handle, "inbox", inbox, "error", err)
		return d.queue.Enqueue(handle, string(body), inbox, err)
	}
	d.env.Log().Debug("delivered", "handle", handle, "inbox", inbox, "type", activity["type"])
	return nil
}

// Broadcast delivers activity to every distinct inbox of handle's
// followers, preferring shared inboxes.
func (d *Delivery) Broadcast(ctx context.Context, handle string, activity map[string]any) error {
	inboxes, err := models.NewFollowers(d.env.DB).Inboxes(handle)
	if err != nil {
		return err
	}
	d.env.Log().Info("broadcast", "handle", handle, "type", activity["type"], "inboxes", len(inboxes))
	for _, inbox := range inboxes {
		if err := d.Deliver(ctx, handle, activity, inbox); err != nil {
			return err
		}
	}
	return nil
}

// Drain retries queued deliveries which are due. It returns the number
// of items delivered plus the number which exhausted their attempts
// during this pass. If another drain holds the queue, Drain returns
// immediately.
func (d *Delivery) Drain(ctx context.Context) (int, error) {
	release, ok, err := d.env.locker().TryLock(ctx, "delivery-queue", drainLease)
	if err != nil {
		return 0, err
	}
	if !ok {
		d.env.Log().Debug("drain already in progress")
		return 0, nil
	}
	defer release()

	items, err := d.queue.Due(time.Now(), drainBatch)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := d.send(ctx, item.Handle, item.TargetInbox, []byte(item.ActivityJSON)); err != nil {
			attempts, qerr := d.queue.Failed(item, err, time.Now())
			if qerr != nil {
				return processed, qerr
			}
			d.env.Log().Info("retry failed", "id", item.ID, "inbox", item.TargetInbox, "attempts", attempts, "error", err)
			if attempts >= models.MaxDeliveryAttempts {
				processed++
			}
			continue
		}
		if err := d.queue.Delivered(item); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

func (d *Delivery) send(ctx context.Context, handle, inbox string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	if d.env.Keys == nil {
		return fmt.Errorf("no key store to sign as %s", handle)
	}
	return d.env.Client(handle).Post(ctx, inbox, body)
}
