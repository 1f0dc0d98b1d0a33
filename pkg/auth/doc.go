// Package auth guards the example services with token authentication and
// per-client rate limiting.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// The guards are pipeline preprocessor steps: a rejected request is
// answered with the {code, message} envelope and never reaches a route.
package auth
