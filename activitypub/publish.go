package activitypub

import (
	"context"
	"errors"
	"time"

	"github.com/davecheney/fedipub/models"
	"gorm.io/gorm"
)

// PublishPost broadcasts the Create for handle's post id to its
// followers and marks the post federated. It reports false if there is
// no such post.
func PublishPost(ctx context.Context, env *Env, handle, id string) (bool, error) {
	post, err := models.NewPosts(env.DB).Find(handle, id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, publish(ctx, env, post)
}

// PublishAllPending publishes every public or unlisted post which has
// not yet been federated, oldest first. If handle is empty posts of all
// accounts are published. Posts which fail are logged and skipped.
func PublishAllPending(ctx context.Context, env *Env, handle string) (int, error) {
	posts, err := models.NewPosts(env.DB).Pending(handle)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if err := publish(ctx, env, post); err != nil {
			env.Log().Error("publish", "handle", post.Handle, "id", post.ID, "error", err)
			continue
		}
		env.Log().Info("published", "handle", post.Handle, "id", post.ID)
		published++
	}
	return published, nil
}

func publish(ctx context.Context, env *Env, post *models.Post) error {
	create := NewBuilder(env.Domain).Create(post)
	if err := NewDelivery(env).Broadcast(ctx, post.Handle, create); err != nil {
		return err
	}
	return models.NewPosts(env.DB).MarkFederated(post.Handle, post.ID, time.Now())
}
