package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/httpd/pkg/api"
)

// recordingConn is an in-memory Conn for tests.
type recordingConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	status       int
	header       http.Header
	body         bytes.Buffer
	headerWrites int
	finished     int
	closed       int
	writeErr     error
}

func newRecordingConn() *recordingConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &recordingConn{ctx: ctx, cancel: cancel}
}

func (c *recordingConn) Context() context.Context { return c.ctx }

func (c *recordingConn) WriteHeader(status int, header http.Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.header = header
	c.headerWrites++
	return nil
}

func (c *recordingConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.body.Write(p)
}

func (c *recordingConn) Flush() error { return nil }

func (c *recordingConn) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished++
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *recordingConn) snapshot() (status int, header http.Header, body []byte, finished, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.header, append([]byte(nil), c.body.Bytes()...), c.finished, c.closed
}

func (c *recordingConn) envelope(t *testing.T) api.Object {
	t.Helper()
	_, _, body, _, _ := c.snapshot()
	obj, err := api.DecodeJSON(body)
	if err != nil {
		t.Fatalf("decoding body %q: %v", body, err)
	}
	return obj
}

var errBrokenPipe = errors.New("broken pipe")

func waitDone(t *testing.T, w *Writer) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("writer did not end, state = %s", w.State())
	}
}
