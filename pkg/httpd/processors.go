package httpd

import (
	"net/http"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/auth"
	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/transport"
)

// Default pre-flight answers when the request does not name what it wants.
const (
	DefaultAllowMethods = "OPTIONS, HEAD, GET, POST, PUT, DELETE, PATCH"
	DefaultAllowHeaders = "Content-Type"
)

// Preprocessor returns the pipeline preprocessor: rate limiting, body
// decoding, JSON replies by default, permissive CORS, pre-flight answers
// and token auth. Nil limiter or chain skips that step.
func Preprocessor(limiter auth.RateLimiter, chain *auth.AuthChain, bypass []string) transport.Processor {
	var steps []transport.Processor
	if limiter != nil {
		steps = append(steps, auth.RateLimit(limiter))
	}
	steps = append(steps, negotiate, CORS)
	if chain != nil {
		steps = append(steps, auth.Require(chain, bypass))
	}

	return func(req *api.Request, resp *api.Response) int {
		for _, step := range steps {
			if status := step(req, resp); status != 0 {
				return status
			}
		}
		return 0
	}
}

// negotiate decodes the request body and defaults the reply to JSON. A body
// that fails to decode stays empty; handlers see zero values.
func negotiate(req *api.Request, resp *api.Response) int {
	if err := req.ParseBody(); err != nil {
		debug.Log(debug.Dispatch, "body decode failed", "path", req.Path, "content_type", req.ContentType, "error", err)
	}
	resp.ContentType = api.ApplicationJSON
	return 0
}

// CORS allows every origin and answers OPTIONS pre-flight probes with 204,
// reflecting what the probe asked for.
func CORS(req *api.Request, resp *api.Response) int {
	resp.Header.Set("Access-Control-Allow-Origin", "*")
	if req.Method != http.MethodOptions {
		return 0
	}
	resp.Header.Set("Access-Control-Allow-Origin", req.GetHeader("Origin", "*"))
	resp.Header.Set("Access-Control-Allow-Methods", req.GetHeader("Access-Control-Request-Method", DefaultAllowMethods))
	resp.Header.Set("Access-Control-Allow-Headers", req.GetHeader("Access-Control-Request-Headers", DefaultAllowHeaders))
	return http.StatusNoContent
}

// Postprocessor runs after inline handlers.
func Postprocessor(req *api.Request, resp *api.Response) int {
	debug.Log(debug.Dispatch, "postprocess", "path", req.Path, "status", resp.StatusCode, "content_type", resp.ContentType)
	return 0
}
