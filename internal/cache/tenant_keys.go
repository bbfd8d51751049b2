package cache

import (
	"context"

	"github.com/noah-isme/backend-partyshop/internal/tenant"
)

func tenantKey(ctx context.Context, key string) string {
	id, _ := tenant.From(ctx)
	return tenant.PrefixKey(id, key)
}

// KeyCatalogList returns a per-tenant cache key for a catalog listing.
func KeyCatalogList(ctx context.Context, variant string) string {
	return tenantKey(ctx, "catalog:products:"+variant)
}

// KeyGroupOrder returns the per-tenant cache key for a shared order lookup.
func KeyGroupOrder(ctx context.Context, token string) string {
	return tenantKey(ctx, "grouporder:"+token)
}

// KeySession returns the per-tenant hash key holding a checkout session.
func KeySession(ctx context.Context, sessionID string) string {
	return tenantKey(ctx, "session:"+sessionID)
}

// KeyIdempotency returns the per-tenant key guarding a replayed request.
func KeyIdempotency(ctx context.Context, digest string) string {
	return tenantKey(ctx, "idem:"+digest)
}
