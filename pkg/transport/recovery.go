package transport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhuss/httpd/pkg/api"
)

// Recovery returns middleware that catches panics in the handler. A panic
// before anything was sent becomes a 500 envelope; a panic after the
// writer began tears the exchange down. The server keeps serving.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return ContextHandlerFunc(func(c *Context) (status int) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				c.Logger().Error("handler panicked",
					slog.String("request_id", c.RequestID()),
					slog.String("panic", fmt.Sprint(r)),
				)
				if c.Writer().State() != StateIdle {
					c.Writer().Close()
					status = Pending
					return
				}
				resp := c.Response()
				resp.Reset()
				api.Status(resp, http.StatusInternalServerError, fmt.Sprintf("internal server error: %v", r))
				status = http.StatusInternalServerError
			}()
			return next.Serve(c)
		})
	}
}
