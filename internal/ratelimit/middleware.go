package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/backend-partyshop/internal/common"
	"github.com/noah-isme/backend-partyshop/internal/tenant"
)

// Decision is the outcome of counting one request against a key.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Policy counts a request for key.
type Policy interface {
	Take(ctx context.Context, key string) (Decision, error)
}

// Handler enforces a Policy before delegating to the next handler. Policy
// errors let the request through.
type Handler struct {
	Policy  Policy
	Key     func(*http.Request) string
	OnError func(error)
	Now     func() time.Time
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Policy == nil || h.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		d, err := h.Policy.Take(r.Context(), h.Key(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(d.Limit, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

		if !d.Allowed {
			now := time.Now
			if h.Now != nil {
				now = h.Now
			}
			retryAfter := int(d.Reset.Sub(now()).Seconds())
			headers.Set("Retry-After", strconv.Itoa(max(retryAfter, 0)))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey keys requests by tenant, scope and client IP.
func ClientKey(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		tid, _ := tenant.From(r.Context())
		return tenant.PrefixKey(tid, scope+":"+common.ClientIP(r))
	}
}
