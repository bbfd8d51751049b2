package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-partyshop/internal/common"
)

// ErrNotConfigured is returned when neither a JWT secret nor an API key hash is set.
var ErrNotConfigured = errors.New("auth: admin credentials not configured")

// AdminConfig configures operator authentication for the admin API.
type AdminConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
	APIKeyHash string
	Now        func() time.Time
}

// Admin verifies operator credentials: HS256 bearer tokens or an API key
// checked against an argon2id hash.
type Admin struct {
	secret     []byte
	issuer     string
	audience   string
	clockSkew  time.Duration
	apiKeyHash string
	now        func() time.Time
}

// NewAdmin builds an Admin verifier.
func NewAdmin(cfg AdminConfig) (*Admin, error) {
	secret := strings.TrimSpace(cfg.Secret)
	hash := strings.TrimSpace(cfg.APIKeyHash)
	if secret == "" && hash == "" {
		return nil, ErrNotConfigured
	}
	if hash != "" {
		if _, _, _, err := argon2id.DecodeHash(hash); err != nil {
			return nil, fmt.Errorf("auth: invalid api key hash: %w", err)
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Admin{
		secret:     []byte(secret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		clockSkew:  cfg.ClockSkew,
		apiKeyHash: hash,
		now:        now,
	}, nil
}

// IssueToken signs an operator token for subject valid for ttl.
func (a *Admin) IssueToken(subject string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrNotConfigured
	}
	now := a.now()
	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		NotBefore(now.Add(-a.clockSkew)).
		Expiration(now.Add(ttl))
	if a.issuer != "" {
		builder = builder.Issuer(a.issuer)
	}
	if a.audience != "" {
		builder = builder.Audience([]string{a.audience})
	}
	token, err := builder.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, a.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// ParseToken validates a bearer token and returns its subject.
func (a *Admin) ParseToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" || len(a.secret) == 0 {
		return "", unauthorized(nil)
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return "", unauthorized(err)
	}
	if algorithm != jwa.HS256 {
		return "", unauthorized(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, a.secret), jwt.WithValidate(false))
	if err != nil {
		return "", unauthorized(err)
	}
	if err := a.validateClaims(parsed); err != nil {
		return "", unauthorized(err)
	}
	if parsed.Subject() == "" {
		return "", unauthorized(errors.New("auth: token missing subject"))
	}
	return parsed.Subject(), nil
}

// validateClaims checks time bounds plus the configured issuer and audience.
func (a *Admin) validateClaims(tok jwt.Token) error {
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(a.now)),
		jwt.WithAcceptableSkew(a.clockSkew),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	return jwt.Validate(tok, opts...)
}

// CheckAPIKey compares key against the configured argon2id hash.
func (a *Admin) CheckAPIKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" || a.apiKeyHash == "" {
		return false
	}
	ok, err := argon2id.ComparePasswordAndHash(key, a.apiKeyHash)
	return err == nil && ok
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: expected exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}

func unauthorized(err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", "missing or invalid credentials", http.StatusUnauthorized, err)
}
