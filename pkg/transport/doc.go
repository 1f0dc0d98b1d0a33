// Package transport implements the response completion model shared by the
// httpd transport adapters.
//
// A transport adapter parses a request, matches it against the routes of a
// Dispatcher, and hands it over together with a Conn. The Dispatcher runs
// the pipeline on one of its event loops: preprocessor, route handler,
// postprocessor and error mapping. Bytes reach the Conn only through the
// exchange's Writer.
//
// # Completion
//
// A handler completes inline by returning a status code. It defers
// completion by returning Pending, by calling Begin on the Writer, or by
// scheduling work through the Context (SetTimeout, Go). A deferred
// exchange ends when its Writer reaches StateEnded, which happens exactly
// once: the first End or Close wins and every later call is a no-op.
//
// Three adapters of the Handler interface cover the usual shapes:
//
//   - HandlerFunc fills the Response and returns a status.
//   - ContextHandlerFunc sees the whole exchange and may defer it.
//   - WriterHandlerFunc always runs as a background task owning the Writer.
//
// # Middleware
//
// The middleware chain wraps every route handler. Built-in middleware
// provides panic recovery, request ID assignment (X-Request-ID), and
// structured logging via log/slog once the exchange has ended.
package transport
