package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-partyshop/internal/common"
)

var fixedNow = time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

func newAdmin(t *testing.T, hash string) *Admin {
	t.Helper()
	admin, err := NewAdmin(AdminConfig{
		Secret:     "test-secret-test-secret-test-sec",
		Issuer:     "partyshop",
		Audience:   "partyshop-admin",
		ClockSkew:  time.Second,
		APIKeyHash: hash,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return admin
}

func TestNewAdminRequiresCredentials(t *testing.T) {
	_, err := NewAdmin(AdminConfig{})
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewAdmin(AdminConfig{APIKeyHash: "not-a-hash"})
	require.Error(t, err)
}

func TestIssueAndParseToken(t *testing.T) {
	admin := newAdmin(t, "")
	token, err := admin.IssueToken("ops@partyshop", time.Hour)
	require.NoError(t, err)

	subject, err := admin.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "ops@partyshop", subject)

	later := newAdmin(t, "")
	later.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	_, err = later.ParseToken(token)
	require.Error(t, err)
	require.True(t, common.IsAppError(err))
}

func TestParseTokenRejectsForeignTokens(t *testing.T) {
	admin := newAdmin(t, "")

	other, err := NewAdmin(AdminConfig{Secret: "another-secret", Issuer: "partyshop", Audience: "partyshop-admin", Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	forged, err := other.IssueToken("ops", time.Hour)
	require.NoError(t, err)
	_, err = admin.ParseToken(forged)
	require.Error(t, err, "wrong signing key")

	tok, err := jwt.NewBuilder().Subject("ops").Expiration(fixedNow.Add(time.Hour)).Build()
	require.NoError(t, err)
	unsigned, err := jwt.NewSerializer().Serialize(tok)
	require.NoError(t, err)
	_, err = admin.ParseToken(string(unsigned))
	require.Error(t, err, "unsigned token")

	hs512, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, []byte("test-secret-test-secret-test-sec")))
	require.NoError(t, err)
	_, err = admin.ParseToken(string(hs512))
	require.Error(t, err, "unexpected algorithm")

	_, err = admin.ParseToken("")
	require.Error(t, err)
}

func TestCheckAPIKey(t *testing.T) {
	hash, err := argon2id.CreateHash("s3cret-key", argon2id.DefaultParams)
	require.NoError(t, err)
	admin := newAdmin(t, hash)

	require.True(t, admin.CheckAPIKey("s3cret-key"))
	require.True(t, admin.CheckAPIKey("  s3cret-key "))
	require.False(t, admin.CheckAPIKey("wrong"))
	require.False(t, admin.CheckAPIKey(""))
	require.False(t, newAdmin(t, "").CheckAPIKey("s3cret-key"))
}

func TestRequireAdmin(t *testing.T) {
	hash, err := argon2id.CreateHash("s3cret-key", argon2id.DefaultParams)
	require.NoError(t, err)
	admin := newAdmin(t, hash)
	token, err := admin.IssueToken("ops", time.Hour)
	require.NoError(t, err)

	var seen string
	guarded := Middleware{Admin: admin, Logger: zerolog.Nop()}.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		value  string
		status int
		actor  string
	}{
		{"bearer", "Authorization", "Bearer " + token, http.StatusNoContent, "ops"},
		{"lowercase scheme", "Authorization", "bearer " + token, http.StatusNoContent, "ops"},
		{"api key", APIKeyHeader, "s3cret-key", http.StatusNoContent, apiKeyActor},
		{"bad api key", APIKeyHeader, "nope", http.StatusUnauthorized, ""},
		{"bad token", "Authorization", "Bearer abc.def.ghi", http.StatusUnauthorized, ""},
		{"none", "", "", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/vouchers", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.actor, seen)
			if tc.status == http.StatusUnauthorized {
				require.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
			}
		})
	}
}

func TestRequireAdminDisabled(t *testing.T) {
	guarded := Middleware{Logger: zerolog.Nop()}.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValidateClaims(t *testing.T) {
	admin := newAdmin(t, "")
	build := func(issuer, audience string, nbf, exp time.Time) jwt.Token {
		tok, err := jwt.NewBuilder().
			Issuer(issuer).
			Audience([]string{audience}).
			Subject("ops").
			NotBefore(nbf).
			Expiration(exp).
			Build()
		require.NoError(t, err)
		return tok
	}

	cases := []struct {
		name    string
		token   jwt.Token
		wantErr bool
	}{
		{"valid", build("partyshop", "partyshop-admin", fixedNow, fixedNow.Add(time.Minute)), false},
		{"within skew", build("partyshop", "partyshop-admin", fixedNow.Add(500*time.Millisecond), fixedNow.Add(time.Minute)), false},
		{"issuer mismatch", build("other", "partyshop-admin", fixedNow, fixedNow.Add(time.Minute)), true},
		{"audience mismatch", build("partyshop", "storefront", fixedNow, fixedNow.Add(time.Minute)), true},
		{"expired", build("partyshop", "partyshop-admin", fixedNow.Add(-2*time.Hour), fixedNow.Add(-time.Minute)), true},
		{"not yet valid", build("partyshop", "partyshop-admin", fixedNow.Add(5*time.Minute), fixedNow.Add(10*time.Minute)), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := admin.validateClaims(tc.token)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
