package fasthttp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/rhuss/httpd/pkg/transport"
)

var errAborted = errors.New("fasthttp: exchange aborted")

// streamConn implements transport.Conn for fasthttp. fasthttp sends the
// response only after the request handler returns, so the conn buffers
// until the headers are known and then either hands the complete body over
// or switches to a pipe that the server drains as a body stream.
type streamConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	status   int
	header   http.Header
	buf      bytes.Buffer
	pw       *io.PipeWriter
	finished bool
	closed   bool

	headersOnce sync.Once
	headers     chan struct{}
}

var _ transport.Conn = (*streamConn)(nil)

func newStreamConn(parent context.Context) *streamConn {
	ctx, cancel := context.WithCancel(parent)
	return &streamConn{
		ctx:     ctx,
		cancel:  cancel,
		headers: make(chan struct{}),
	}
}

func (c *streamConn) Context() context.Context { return c.ctx }

func (c *streamConn) WriteHeader(status int, header http.Header) error {
	c.mu.Lock()
	c.status = status
	c.header = header.Clone()
	c.mu.Unlock()
	c.headersOnce.Do(func() { close(c.headers) })
	return nil
}

func (c *streamConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	if pw := c.pw; pw != nil {
		c.mu.Unlock()
		return pw.Write(p)
	}
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Flush is a no-op: the pipe hands every write to the server directly.
func (c *streamConn) Flush() error { return nil }

func (c *streamConn) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = true
	if c.pw != nil {
		return c.pw.Close()
	}
	return nil
}

func (c *streamConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancel()
	if c.pw != nil {
		return c.pw.CloseWithError(errAborted)
	}
	return nil
}

// respond copies the exchange onto rctx once the headers are known or the
// exchange has ended. It reports false when the connection must be dropped.
func (c *streamConn) respond(rctx *fasthttp.RequestCtx) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	rctx.SetStatusCode(c.status)
	for key, values := range c.header {
		switch http.CanonicalHeaderKey(key) {
		case "Content-Length":
			continue
		case "Content-Type":
			rctx.Response.Header.SetContentType(values[len(values)-1])
			continue
		}
		for _, v := range values {
			rctx.Response.Header.Add(key, v)
		}
	}

	if c.finished {
		rctx.SetBody(c.buf.Bytes())
		c.cancel()
		return true
	}

	size := -1
	if n, err := strconv.Atoi(c.header.Get("Content-Length")); err == nil {
		size = n
	}
	pr, pw := io.Pipe()
	c.pw = pw
	buffered := append([]byte(nil), c.buf.Bytes()...)
	c.buf.Reset()
	rctx.SetBodyStream(&bodyStream{
		Reader: io.MultiReader(bytes.NewReader(buffered), pr),
		pr:     pr,
		cancel: c.cancel,
	}, size)
	return true
}

// bodyStream is closed by fasthttp once the response has been written or
// the peer went away. Closing it fails any pending write and cancels the
// request context.
type bodyStream struct {
	io.Reader
	pr     *io.PipeReader
	cancel context.CancelFunc
}

func (b *bodyStream) Close() error {
	b.cancel()
	return b.pr.CloseWithError(transport.ErrTransport)
}
