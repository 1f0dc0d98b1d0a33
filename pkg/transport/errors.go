package transport

import (
	"errors"
	"net/http"

	"github.com/rhuss/httpd/pkg/api"
)

// Writer errors. None of them is fatal to the process: callers stop
// writing and let the exchange end.
var (
	// ErrInvalidState is returned for an operation attempted out of sequence.
	ErrInvalidState = errors.New("transport: writer operation out of sequence")

	// ErrEnded is returned by WriteBody once the writer has ended.
	ErrEnded = errors.New("transport: writer ended")

	// ErrTransport is returned when the peer is gone or a write failed.
	ErrTransport = errors.New("transport: connection failed")
)

// IsSuccess reports whether status is in the 2xx range.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// MapError writes the error envelope for a non-success status into resp.
// The code defaults to the status and the message to its reason phrase;
// fields the handler already set are kept.
func MapError(resp *api.Response, status int) {
	if !resp.Has("code") {
		resp.Set("code", status)
	}
	if !resp.Has("message") {
		resp.Set("message", api.StatusText(status))
	}
}

// StatusFromError maps an error to an HTTP status. An *api.APIError keeps
// its own status; anything else is a server error.
func StatusFromError(err error) int {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
