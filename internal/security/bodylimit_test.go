package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBodyLimit(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 10}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured = string(data)
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name          string
		body          string
		contentLength int64
		status        int
	}{
		{"within limit", "hello", 0, http.StatusOK},
		{"oversized stream", "excessive-payload", -1, http.StatusRequestEntityTooLarge},
		{"declared oversized", "short", 100, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			captured = ""
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(tc.body))
			if tc.contentLength != 0 {
				req.ContentLength = tc.contentLength
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				require.Equal(t, tc.body, captured)
			} else {
				require.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")
			}
		})
	}
}
