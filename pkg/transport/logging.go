package transport

import (
	"log/slog"
	"time"

	"github.com/rhuss/httpd/pkg/observability"
)

// Logging returns middleware that emits one structured log entry per
// exchange once its writer has ended. Deferred exchanges are logged when
// the timer or background task finishes them, not when the handler returns.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return ContextHandlerFunc(func(c *Context) int {
			status := next.Serve(c)

			completion := observability.CompletionInline
			if status == Pending || c.Writer().State() != StateIdle {
				completion = observability.CompletionDeferred
			}
			w := c.Writer()
			req := c.Request()
			w.OnEnd(func() {
				attrs := []slog.Attr{
					slog.String("request_id", c.RequestID()),
					slog.String("method", req.Method),
					slog.String("path", req.Path),
					slog.Int("status", w.Response().StatusCode),
					slog.String("completion", completion),
					slog.Int64("bytes", w.BytesWritten()),
					slog.Duration("duration", time.Since(c.Start())),
				}
				if w.Aborted() {
					logger.LogAttrs(req.Context(), slog.LevelWarn, "exchange failed", attrs...)
					return
				}
				logger.LogAttrs(req.Context(), slog.LevelInfo, "exchange completed", attrs...)
			})
			return status
		})
	}
}
