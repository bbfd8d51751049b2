package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow is a Policy backed by ulule/limiter with a Redis store.
type FixedWindow struct {
	limiter *limiter.Limiter
}

// NewFixedWindow builds a fixed-window limiter. rate uses the limiter format,
// e.g. "30-M" for thirty requests per minute.
func NewFixedWindow(client redis.UniversalClient, prefix, rate string) (*FixedWindow, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", rate, err)
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	return &FixedWindow{limiter: limiter.New(store, parsed)}, nil
}

// Take implements Policy.
func (f *FixedWindow) Take(ctx context.Context, key string) (Decision, error) {
	lctx, err := f.limiter.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !lctx.Reached,
		Limit:     int(lctx.Limit),
		Remaining: int(lctx.Remaining),
		Reset:     time.Unix(lctx.Reset, 0),
	}, nil
}
