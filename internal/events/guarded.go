package events

import (
	"context"
	"time"

	"github.com/noah-isme/backend-partyshop/internal/resilience"
)

// GuardedNotifier bounds a notifier with a per-call timeout and a circuit
// breaker so an unreachable broker does not stall order placement.
type GuardedNotifier struct {
	Next    Notifier
	Breaker *resilience.Breaker
	Timeout time.Duration
}

// Notify implements Notifier.
func (g GuardedNotifier) Notify(ctx context.Context, ev Event) error {
	if g.Next == nil {
		return nil
	}
	call := func(ctx context.Context) error {
		if g.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.Timeout)
			defer cancel()
		}
		return g.Next.Notify(ctx, ev)
	}
	if g.Breaker == nil {
		return call(ctx)
	}
	return g.Breaker.Do(ctx, call)
}
