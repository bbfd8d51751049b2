// Package tenant carries the storefront identifier through request contexts
// and namespaces shared keys by it.
package tenant

import (
	"context"
	"strings"
)

type ctxKey struct{}

// With returns ctx carrying id.
func With(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(id))
}

// From returns the tenant in ctx; ok is false when none or blank.
func From(ctx context.Context) (id string, ok bool) {
	if ctx == nil {
		return "", false
	}
	id, _ = ctx.Value(ctxKey{}).(string)
	return id, id != ""
}

// PrefixKey namespaces key under id. An empty id leaves key unchanged.
func PrefixKey(id, key string) string {
	if id == "" {
		return key
	}
	return id + ":" + key
}
