// Package jwt issues and validates HMAC-signed session tokens.
//
// The login service hands out a token from Issue; the auth chain validates
// it on later requests. Tokens carry the subject, an optional scope claim,
// and an expiry.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/auth"
)

// Config holds the token issuer configuration.
type Config struct {
	// Secret signs and verifies tokens. Required.
	Secret []byte

	// Issuer is set as the iss claim and validated when non-empty.
	Issuer string

	// TTL is the token lifetime. Default: 24 hours.
	TTL time.Duration

	// ScopesClaim names the claim holding scopes. Default: "scope".
	ScopesClaim string

	// now is overridden in tests.
	now func() time.Time
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.now == nil {
		c.now = time.Now
	}
}

// ErrNoSecret is returned by New when no signing secret is configured.
var ErrNoSecret = errors.New("jwt: signing secret is required")

// Authenticator issues HS256 tokens and validates them.
type Authenticator struct {
	config Config
}

// New creates a token authenticator.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}
	cfg.applyDefaults()
	return &Authenticator{config: cfg}, nil
}

// Issue signs a token for subject.
func (a *Authenticator) Issue(subject string, scopes ...string) (string, error) {
	now := a.config.now()
	claims := jwtlib.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(a.config.TTL).Unix(),
	}
	if a.config.Issuer != "" {
		claims["iss"] = a.config.Issuer
	}
	if len(scopes) > 0 {
		claims[a.config.ScopesClaim] = strings.Join(scopes, " ")
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.config.Secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Authenticate validates the request token.
//
// Decision outcomes:
//   - Abstain: no token header and no bearer Authorization header
//   - No: token present but invalid (expired, wrong issuer, bad signature, etc.)
//   - Yes: valid token with populated Identity
func (a *Authenticator) Authenticate(_ context.Context, req *api.Request) auth.AuthResult {
	tokenStr := auth.TokenFromRequest(req)
	if tokenStr == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.config.Secret, nil
	}, a.parserOptions()...)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("%w: %w", auth.ErrTokenWrong, err),
		}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrTokenWrong}
	}

	subject := claimString(claims, "sub")
	if subject == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("%w: missing sub claim", auth.ErrTokenWrong),
		}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject: subject,
			Scopes:  extractScopes(claims, a.config.ScopesClaim),
		},
	}
}

// parserOptions builds JWT parser options based on the configuration.
func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(a.config.now),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}
	return opts
}

// claimString extracts a string value from JWT claims.
// Returns empty string if the claim is missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractScopes extracts scopes from JWT claims.
// The scope claim can be either a space-separated string or a JSON array.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		parts := strings.Fields(v)
		if len(parts) == 0 {
			return nil
		}
		return parts
	case []interface{}:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}
