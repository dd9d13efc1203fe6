package activitypub

import (
	"context"
	"errors"
	"fmt"

	"github.com/davecheney/fedipub/internal/webfinger"
	"github.com/davecheney/fedipub/models"
	"gorm.io/gorm"
)

// Follow asks target to accept handle as a follower. target may be an
// actor URI or an account. The pending follow is recorded before the
// Follow is delivered. Follow returns the id of the followed actor.
func Follow(ctx context.Context, env *Env, handle, target string) (string, error) {
	actor, err := NewResolver(env, handle).ResolveAndCache(ctx, target)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", target, err)
	}
	created, err := models.NewFollowings(env.DB).CreatePending(handle, actor.ID, actor.Inbox)
	if err != nil {
		return "", err
	}
	if !created {
		// already following, or asked to
		return actor.ID, nil
	}
	follow := NewBuilder(env.Domain).Follow(handle, actor.ID)
	if err := NewDelivery(env).Deliver(ctx, handle, follow, actor.Inbox); err != nil {
		return "", err
	}
	env.Log().Info("follow requested", "handle", handle, "actor", actor.ID)
	return actor.ID, nil
}

// Unfollow withdraws handle's follow of target. The following row is
// removed whether or not the Undo could be delivered.
func Unfollow(ctx context.Context, env *Env, handle, target string) error {
	if webfinger.IsAcct(target) {
		actor, err := NewResolver(env, handle).Resolve(ctx, target)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", target, err)
		}
		target = actor.ID
	}
	following := models.NewFollowings(env.DB)
	f, err := following.Find(handle, target)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return err
	}
	undo := NewBuilder(env.Domain).UndoFollow(handle, target)
	if err := NewDelivery(env).Deliver(ctx, handle, undo, f.InboxURL); err != nil {
		env.Log().Error("queue undo", "handle", handle, "actor", target, "error", err)
	}
	if err := following.Delete(handle, target); err != nil {
		return err
	}
	env.Log().Info("unfollowed", "handle", handle, "actor", target)
	return nil
}
