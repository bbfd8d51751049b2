package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-partyshop/internal/common"
	"github.com/noah-isme/backend-partyshop/internal/tenant"
)

// RequireTenant rejects requests whose resolved tenant is missing or is not a
// UUID. Storage is keyed by tenant UUID, so a slug that slipped through the
// resolver would otherwise surface later as a 500.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := tenant.From(r.Context())
		if !ok {
			common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant is required", nil)
			return
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "TENANT_INVALID", "tenant must be a UUID", nil)
			return
		}
		// normalise casing so cache keys and SQL parameters agree
		next.ServeHTTP(w, r.WithContext(tenant.With(r.Context(), parsed.String())))
	})
}
