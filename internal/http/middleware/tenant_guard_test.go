package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-partyshop/internal/http/middleware"
	"github.com/noah-isme/backend-partyshop/internal/tenant"
)

func TestRequireTenant(t *testing.T) {
	var seen string
	handler := middleware.RequireTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = tenant.From(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		tenant string
		status int
		code   string
		want   string
	}{
		{"missing", "", http.StatusBadRequest, "TENANT_REQUIRED", ""},
		{"slug", "acme", http.StatusBadRequest, "TENANT_INVALID", ""},
		{"uuid", "8F14E45F-CEEA-467A-9B36-9A5C5E4B3D21", http.StatusOK, "", "8f14e45f-ceea-467a-9b36-9a5c5e4b3d21"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
			if tc.tenant != "" {
				req = req.WithContext(tenant.With(req.Context(), tc.tenant))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				require.Contains(t, rec.Body.String(), tc.code)
			}
			require.Equal(t, tc.want, seen)
		})
	}
}
