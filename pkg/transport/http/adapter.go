// Package http serves a transport.Dispatcher with net/http.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/observability"
	"github.com/rhuss/httpd/pkg/transport"
)

// Adapter routes net/http requests into a Dispatcher. Path parameters
// captured by the ServeMux are appended to the request query.
type Adapter struct {
	dispatcher *transport.Dispatcher
	mux        *http.ServeMux
	config     Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds

	// MetricsPath serves Prometheus metrics outside the pipeline. Empty
	// disables it.
	MetricsPath string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30,
		MetricsPath:     "/metrics",
	}
}

// NewAdapter registers every route of d on a ServeMux. Requests matching no
// route still enter the pipeline so the preprocessor can answer pre-flight
// probes; the dispatcher then replies 404.
func NewAdapter(d *transport.Dispatcher, cfg Config) *Adapter {
	a := &Adapter{
		dispatcher: d,
		mux:        http.NewServeMux(),
		config:     cfg,
	}

	a.mux.HandleFunc("GET /healthz", handleHealthz)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, observability.Handler())
	}

	catchAll := true
	routes := d.Routes()
	for i := range routes {
		route := &routes[i]
		a.mux.HandleFunc(route.Pattern, a.serve(route))
		if route.Pattern == "/" {
			catchAll = false
		}
	}
	if catchAll {
		a.mux.HandleFunc("/", a.serve(nil))
	}
	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

func (a *Adapter) serve(route *transport.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.config.MaxBodySize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))
				return
			}
			writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
			return
		}

		ctx := r.Context()
		if id := r.Header.Get(transport.RequestIDHeader); id != "" {
			ctx = transport.ContextWithRequestID(ctx, id)
		}
		req := api.NewRequest(ctx, r.Method, r.URL.Path, r.Header, body)
		req.RemoteAddr = r.RemoteAddr
		req.Query = parseQuery(r.URL.RawQuery)
		if route != nil {
			for _, name := range route.Params {
				req.Query.Add(name, r.PathValue(name))
			}
		}

		conn := newResponseConn(w, r)
		conn.wait(a.dispatcher.Dispatch(conn, req, route))
	}
}

// parseQuery decodes a raw query string keeping the wire order and
// repeated keys. Malformed pairs are kept verbatim.
func parseQuery(raw string) api.Params {
	var params api.Params
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		params.Add(key, value)
	}
	return params
}

// writeError answers a request that never reached the pipeline with the
// standard envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", api.ApplicationJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"code": status, "message": message})
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", api.TextPlain)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}
