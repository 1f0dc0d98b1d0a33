package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rhuss/httpd/pkg/api"
)

// AuthDecision represents the three possible outcomes of authentication.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	// The chain continues to the next authenticator.
	Abstain
)

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No
}

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the unique identifier (required, non-empty).
	Subject string

	// Scopes lists the authorization scopes granted.
	Scopes []string
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, req *api.Request) AuthResult
}

// Envelope codes reported by the auth guards.
const (
	CodeMissToken       = 10011
	CodeTokenWrong      = 10012
	CodeTooManyRequests = 10013
)

// Sentinel errors.
var (
	ErrMissToken       = errors.New("Miss token")
	ErrTokenWrong      = errors.New("Token wrong")
	ErrTooManyRequests = errors.New("Too many requests")
)

// TokenHeader carries the session token issued by /login.
const TokenHeader = "token"

// TokenFromRequest returns the token header, falling back to a bearer
// Authorization header. It returns "" when neither is present.
func TokenFromRequest(req *api.Request) string {
	if tok := req.GetHeader(TokenHeader, ""); tok != "" {
		return tok
	}
	if h := req.GetHeader("Authorization", ""); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// AuthChain evaluates authenticators in order using three-outcome voting.
type AuthChain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If all abstain, returns the default decision.
func (c *AuthChain) Authenticate(ctx context.Context, req *api.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, req)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous"},
		}
	}

	err := ErrTokenWrong
	if TokenFromRequest(req) == "" {
		err = ErrMissToken
	}
	return AuthResult{Decision: No, Err: err}
}
