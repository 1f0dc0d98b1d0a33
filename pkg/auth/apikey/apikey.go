// Package apikey provides a static token authenticator. Tokens are hashed
// with SHA-256 on load and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/auth"
)

// KeyEntry maps a token hash to an identity.
type KeyEntry struct {
	KeyHash  [32]byte
	Identity auth.Identity
}

// RawKeyEntry is the configuration format for static tokens.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// Authenticator validates request tokens against a static key store.
type Authenticator struct {
	keys []KeyEntry
}

// New creates an authenticator from raw tokens. Plaintext tokens are not
// stored.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, KeyEntry{
			KeyHash:  sha256.Sum256([]byte(e.Key)),
			Identity: e.Identity,
		})
	}
	return a
}

// Authenticate returns Yes for a known token, No for an unknown one and
// Abstain when the request carries no token.
func (a *Authenticator) Authenticate(_ context.Context, req *api.Request) auth.AuthResult {
	token := auth.TokenFromRequest(req)
	if token == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	tokenHash := sha256.Sum256([]byte(token))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], entry.KeyHash[:]) == 1 {
			id := entry.Identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.AuthResult{Decision: auth.No, Err: auth.ErrTokenWrong}
}
