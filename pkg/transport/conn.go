package transport

import (
	"context"
	"net/http"
)

// Conn is the transport-level handle of one exchange. Adapters implement it
// on top of a concrete HTTP server. The Writer serializes calls to
// WriteHeader, Write, Flush and Finish; Close may arrive concurrently with
// any of them and must unblock a pending Write.
type Conn interface {
	// Context is cancelled when the peer goes away.
	Context() context.Context

	// WriteHeader sends the status line and header block.
	WriteHeader(status int, header http.Header) error

	// Write sends one body chunk.
	Write(p []byte) (int, error)

	// Flush pushes buffered body bytes to the peer.
	Flush() error

	// Finish completes the response with a well-formed terminator.
	Finish() error

	// Close tears the connection down without a terminator.
	Close() error
}
