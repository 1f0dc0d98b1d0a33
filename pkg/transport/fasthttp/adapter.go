// Package fasthttp serves a transport.Dispatcher with valyala/fasthttp.
//
// Routing reuses net/http ServeMux patterns so both transports match the
// same route table. Peer disconnects are only observed while a body is
// streaming; fasthttp gives no signal for a connection that drops while
// the handler is still waiting.
package fasthttp

import (
	"context"
	"net/http"
	"net/url"

	"github.com/valyala/fasthttp"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/transport"
)

// Adapter routes fasthttp requests into a Dispatcher.
type Adapter struct {
	dispatcher *transport.Dispatcher
	mux        *http.ServeMux
}

type matchKey struct{}

// routeMatch is filled in by the ServeMux handler of the matching route.
type routeMatch struct {
	route  *transport.Route
	params api.Params
}

// NewAdapter builds the route table of d.
func NewAdapter(d *transport.Dispatcher) *Adapter {
	a := &Adapter{dispatcher: d, mux: http.NewServeMux()}
	routes := d.Routes()
	for i := range routes {
		route := &routes[i]
		a.mux.HandleFunc(route.Pattern, func(_ http.ResponseWriter, r *http.Request) {
			m, _ := r.Context().Value(matchKey{}).(*routeMatch)
			if m == nil {
				return
			}
			m.route = route
			for _, name := range route.Params {
				m.params.Add(name, r.PathValue(name))
			}
		})
	}
	return a
}

// Handler returns the fasthttp request handler.
func (a *Adapter) Handler() fasthttp.RequestHandler {
	return a.serve
}

func (a *Adapter) serve(rctx *fasthttp.RequestCtx) {
	if string(rctx.Path()) == "/healthz" && rctx.IsGet() {
		rctx.SetContentType(api.TextPlain)
		rctx.SetStatusCode(fasthttp.StatusOK)
		rctx.WriteString("ok")
		return
	}

	hdr := make(http.Header)
	rctx.Request.Header.VisitAll(func(k, v []byte) {
		hdr.Add(string(k), string(v))
	})

	conn := newStreamConn(context.Background())
	ctx := conn.Context()
	if id := hdr.Get(transport.RequestIDHeader); id != "" {
		ctx = transport.ContextWithRequestID(ctx, id)
	}

	method := string(rctx.Method())
	path := string(rctx.Path())
	req := api.NewRequest(ctx, method, path, hdr, append([]byte(nil), rctx.PostBody()...))
	req.RemoteAddr = rctx.RemoteAddr().String()
	rctx.QueryArgs().VisitAll(func(k, v []byte) {
		req.Query.Add(string(k), string(v))
	})

	route, params := a.match(method, path, string(rctx.Host()), hdr)
	req.Query = append(req.Query, params...)

	w := a.dispatcher.Dispatch(conn, req, route)
	select {
	case <-conn.headers:
	case <-w.Done():
	}

	if !conn.respond(rctx) {
		debug.Log(debug.Transport, "dropping aborted exchange", "path", path)
		rctx.SetConnectionClose()
		rctx.Conn().Close()
	}
}

// match resolves the route through the ServeMux.
func (a *Adapter) match(method, path, host string, hdr http.Header) (*transport.Route, api.Params) {
	m := &routeMatch{}
	r := &http.Request{
		Method: method,
		URL:    &url.URL{Path: path},
		Host:   host,
		Header: hdr,
	}
	r = r.WithContext(context.WithValue(context.Background(), matchKey{}, m))
	a.mux.ServeHTTP(discardWriter{}, r)
	return m.route, m.params
}

// discardWriter absorbs redirects and 404s written by the ServeMux itself.
type discardWriter struct{}

func (discardWriter) Header() http.Header         { return http.Header{} }
func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (discardWriter) WriteHeader(int)             {}
