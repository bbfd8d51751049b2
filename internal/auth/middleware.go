package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-partyshop/internal/common"
)

// APIKeyHeader carries an operator API key.
const APIKeyHeader = "X-API-Key"

// apiKeyActor is the actor recorded for API key requests.
const apiKeyActor = "api-key"

// Middleware guards admin routes.
type Middleware struct {
	Admin  *Admin
	Logger zerolog.Logger
}

// RequireAdmin admits requests carrying a valid bearer token or API key and
// records the operator on the request context.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Admin == nil {
			common.JSONError(w, http.StatusServiceUnavailable, "ADMIN_DISABLED", "admin access is not configured", nil)
			return
		}
		actor, err := m.authenticate(r)
		if err != nil {
			m.Logger.Debug().Err(err).Str("path", r.URL.Path).Msg("admin auth rejected")
			if common.WriteAppError(w, err) {
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid credentials", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithActor(r.Context(), actor)))
	})
}

func (m Middleware) authenticate(r *http.Request) (string, error) {
	if token := bearerToken(r); token != "" {
		return m.Admin.ParseToken(token)
	}
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		if m.Admin.CheckAPIKey(key) {
			return apiKeyActor, nil
		}
		return "", unauthorized(errors.New("auth: api key mismatch"))
	}
	return "", unauthorized(nil)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
