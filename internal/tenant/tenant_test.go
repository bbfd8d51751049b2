package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolverResolve(t *testing.T) {
	r := NewResolver("", "PartyShop.example.", "")

	req := httptest.NewRequest(http.MethodGet, "http://acme.partyshop.example:8080/api/v1/products", nil)
	require.Equal(t, "acme", r.Resolve(req))

	req.Header.Set(DefaultHeader, " 7d9f ")
	require.Equal(t, "7d9f", r.Resolve(req), "header wins over subdomain")

	apex := httptest.NewRequest(http.MethodGet, "http://partyshop.example/", nil)
	require.Empty(t, r.Resolve(apex))

	foreign := httptest.NewRequest(http.MethodGet, "http://acme.other.example/", nil)
	require.Empty(t, r.Resolve(foreign))
}

func TestResolverIgnoresIPHosts(t *testing.T) {
	r := NewResolver("", "", "")
	for _, host := range []string{"127.0.0.1:8080", "[::1]:8080", "10.0.0.5"} {
		req := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
		req.Host = host
		require.Empty(t, r.Resolve(req), host)
	}
}

func TestResolverMiddlewareFallsBackToDefault(t *testing.T) {
	r := NewResolver("X-Store", "", "default-store")
	var got string
	h := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, _ = From(req.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "localhost", got, "bare host is its own subdomain without a root domain")

	req = httptest.NewRequest(http.MethodGet, "http://127.0.0.1/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "default-store", got)

	req.Header.Set("X-Store", "s1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "s1", got)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := From(context.Background())
	require.False(t, ok)

	_, ok = From(With(context.Background(), "  "))
	require.False(t, ok, "blank ids do not count")

	id, ok := From(With(context.Background(), " t1 "))
	require.True(t, ok)
	require.Equal(t, "t1", id)
}

func TestPrefixKey(t *testing.T) {
	require.Equal(t, "t1:session:abc", PrefixKey("t1", "session:abc"))
	require.Equal(t, "session:abc", PrefixKey("", "session:abc"))
}
