package auth

import (
	"log/slog"
	"net"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/observability"
)

// Processor matches transport.Processor without importing it.
type Processor = func(req *api.Request, resp *api.Response) int

// RateLimit returns a preprocessor step rejecting clients over their
// budget with 429 and code 10013. Clients are keyed by remote IP.
func RateLimit(limiter RateLimiter) Processor {
	return func(req *api.Request, resp *api.Response) int {
		if limiter == nil {
			return 0
		}
		key := clientKey(req)
		if err := limiter.Allow(req.Context(), key); err != nil {
			slog.Warn("rate limit exceeded", "client", key, "path", req.Path)
			observability.RateLimitRejectedTotal.Inc()
			return api.Fail(resp, api.NewTooManyRequestsError(CodeTooManyRequests, err.Error()))
		}
		return 0
	}
}

// Require returns a preprocessor step that runs chain for every path not
// in bypass. Rejections answer 401 with code 10011 when no token was sent
// and 10012 otherwise.
func Require(chain *AuthChain, bypass []string) Processor {
	skip := make(map[string]bool, len(bypass))
	for _, p := range bypass {
		skip[p] = true
	}

	return func(req *api.Request, resp *api.Response) int {
		if chain == nil || skip[req.Path] {
			return 0
		}

		result := chain.Authenticate(req.Context(), req)
		if result.Decision == Yes && result.Identity != nil && result.Identity.Subject != "" {
			debug.Log(debug.Auth, "authentication succeeded", "subject", result.Identity.Subject, "path", req.Path)
			return 0
		}

		slog.Warn("authentication failed",
			"path", req.Path,
			"remote_addr", req.RemoteAddr,
			"error", result.Err,
		)
		if TokenFromRequest(req) == "" {
			return api.Fail(resp, api.NewUnauthorizedError(CodeMissToken, ErrMissToken.Error()))
		}
		return api.Fail(resp, api.NewUnauthorizedError(CodeTokenWrong, ErrTokenWrong.Error()))
	}
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/login", "/ping"}

func clientKey(req *api.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
