package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rhuss/httpd/pkg/transport"
)

var errDetached = errors.New("http: handler returned")

// responseConn implements transport.Conn on top of an http.ResponseWriter.
// The ResponseWriter may only be used until ServeHTTP returns, so every
// call is serialized and refused once the conn is detached.
type responseConn struct {
	w   http.ResponseWriter
	rc  *http.ResponseController
	ctx context.Context

	mu       sync.Mutex
	detached bool
	gone     atomic.Bool // detached, readable without mu
}

var _ transport.Conn = (*responseConn)(nil)

func newResponseConn(w http.ResponseWriter, r *http.Request) *responseConn {
	return &responseConn{
		w:   w,
		rc:  http.NewResponseController(w),
		ctx: r.Context(),
	}
}

func (c *responseConn) Context() context.Context { return c.ctx }

func (c *responseConn) WriteHeader(status int, header http.Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return errDetached
	}
	dst := c.w.Header()
	for k, v := range header {
		dst[k] = v
	}
	c.w.WriteHeader(status)
	return nil
}

func (c *responseConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return 0, errDetached
	}
	return c.w.Write(p)
}

func (c *responseConn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return errDetached
	}
	return c.rc.Flush()
}

// Finish is a no-op: the response is terminated when ServeHTTP returns.
func (c *responseConn) Finish() error { return nil }

// Close expires the write deadline so a Write blocked on a stalled peer
// returns. wait then drops the connection through the writer's Aborted flag.
func (c *responseConn) Close() error {
	if c.gone.Load() {
		return nil
	}
	err := c.rc.SetWriteDeadline(time.Now())
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}

// wait blocks the ServeHTTP goroutine until the writer has ended or the
// peer is gone. An aborted exchange panics with http.ErrAbortHandler so the
// server drops the connection without a terminator.
func (c *responseConn) wait(w *transport.Writer) {
	select {
	case <-w.Done():
	case <-c.ctx.Done():
	}

	c.gone.Store(true)
	c.mu.Lock()
	c.detached = true
	c.mu.Unlock()

	if w.Aborted() {
		panic(http.ErrAbortHandler)
	}
}
