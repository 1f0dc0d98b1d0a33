package transport

import (
	"context"

	"github.com/rhuss/httpd/pkg/api"
)

// Pending is returned by a handler whose response will be completed later
// through the Writer, from a timer or a background task.
const Pending = -1

// Handler serves one exchange. It returns a status code to complete the
// response inline, or Pending to defer it. A handler that has moved the
// Writer out of StateIdle is deferred whatever it returns.
type Handler interface {
	Serve(c *Context) int
}

// HandlerFunc is an inline handler: it fills the response and returns its
// status. Zero means 200.
type HandlerFunc func(req *api.Request, resp *api.Response) int

// Serve calls f(req, resp).
func (f HandlerFunc) Serve(c *Context) int {
	return f(c.Request(), c.Response())
}

// ContextHandlerFunc sees the whole exchange and may defer it by returning
// Pending, by calling Begin, or by scheduling work through the Context.
type ContextHandlerFunc func(c *Context) int

// Serve calls f(c).
func (f ContextHandlerFunc) Serve(c *Context) int {
	return f(c)
}

// WriterHandlerFunc is always deferred: it runs as a background task that
// owns the Writer and must drive it to StateEnded.
type WriterHandlerFunc func(req *api.Request, w *Writer)

// Serve starts f on a background worker.
func (f WriterHandlerFunc) Serve(c *Context) int {
	req, w := c.Request(), c.Writer()
	c.Go(func(context.Context) error {
		f(req, w)
		return nil
	})
	return Pending
}

// Processor runs before or after the route handler. A non-zero return from
// a preprocessor short-circuits the exchange; a non-zero return from a
// postprocessor replaces the handler's status.
type Processor func(req *api.Request, resp *api.Response) int

// Route binds a pattern to a handler. Patterns use net/http ServeMux
// syntax: "GET /group/{group_name}/user/{user_id}".
type Route struct {
	Pattern string
	Handler Handler

	// Params lists the wildcard names of Pattern in order.
	Params []string
}
