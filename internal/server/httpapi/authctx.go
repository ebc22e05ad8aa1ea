package httpapi

import (
	"context"

	"github.com/and161185/placement/internal/model"
)

type ctxKey string

const actorKey ctxKey = "placement.actor"

// WithActor stores the authenticated actor in context.
func WithActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromCtx fetches the authenticated actor from context.
func ActorFromCtx(ctx context.Context) (model.Actor, bool) {
	v := ctx.Value(actorKey)
	if v == nil {
		return model.Actor{}, false
	}
	a, ok := v.(model.Actor)
	return a, ok
}
