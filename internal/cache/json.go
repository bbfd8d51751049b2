package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL applies when a JSON cache is built with a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// JSON stores JSON documents in Redis under a fixed TTL. A nil *JSON or one
// without a client is a valid always-miss cache.
type JSON struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewJSON returns a JSON cache on client.
func NewJSON(client redis.UniversalClient, ttl time.Duration) *JSON {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JSON{client: client, ttl: ttl}
}

// Get decodes key into dst and reports whether it was present.
func (c *JSON) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set encodes v under key.
func (c *JSON) Set(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Delete drops key.
func (c *JSON) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}
