package transport

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID returns middleware that assigns the request ID of each
// exchange. If the incoming request context already carries one (set by
// the transport adapter from the X-Request-ID header), that value is
// used. Otherwise the exchange ID generated by the dispatcher is kept.
//
// The ID is echoed in the X-Request-ID response header.
func RequestID() Middleware {
	return func(next Handler) Handler {
		return ContextHandlerFunc(func(c *Context) int {
			if id := RequestIDFromContext(c.Request().Context()); id != "" {
				c.SetRequestID(id)
			} else if id := c.Request().GetHeader(RequestIDHeader, ""); id != "" {
				c.SetRequestID(id)
			}
			c.Response().Header.Set(RequestIDHeader, c.RequestID())
			return next.Serve(c)
		})
	}
}
