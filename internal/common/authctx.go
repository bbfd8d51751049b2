package common

import "context"

type ctxKey string

const actorKey ctxKey = "auth/actor"

// WithActor stores the authenticated operator on the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// Actor extracts the authenticated operator from the context if present.
func Actor(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(actorKey).(string)
	return v, ok && v != ""
}
