package obs

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RoutePattern returns the chi pattern matched for r, or fallback when the
// request was not routed. Only meaningful once the router has run.
func RoutePattern(r *http.Request, fallback string) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if route := rc.RoutePattern(); route != "" {
			return route
		}
	}
	return fallback
}

// RouteParam returns a chi URL parameter, or "" outside a routed request.
func RouteParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.URLParam(key)
	}
	return ""
}
