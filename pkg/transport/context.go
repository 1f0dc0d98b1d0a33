package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/scheduler"
)

// Context binds the Request, Response and Writer of one exchange to the
// loop it runs on. Timers and background tasks started through it hold the
// exchange open; when the last hold is released and the Writer has not
// ended, the Writer is ended gracefully.
type Context struct {
	req  *api.Request
	resp *api.Response
	w    *Writer

	loop    *scheduler.Loop
	workers *scheduler.Workers
	logger  *slog.Logger

	id        string
	requestID string
	route     string
	start     time.Time

	// holds starts at one for the dispatching frame.
	holds atomic.Int32
}

func newContext(req *api.Request, w *Writer, loop *scheduler.Loop, workers *scheduler.Workers, logger *slog.Logger) *Context {
	c := &Context{
		req:     req,
		resp:    w.Response(),
		w:       w,
		loop:    loop,
		workers: workers,
		logger:  logger,
		id:      api.NewRequestID(),
		start:   time.Now(),
	}
	c.requestID = c.id
	c.holds.Store(1)
	return c
}

// Request returns the exchange request.
func (c *Context) Request() *api.Request { return c.req }

// Response returns the exchange response.
func (c *Context) Response() *api.Response { return c.resp }

// Writer returns the exchange writer.
func (c *Context) Writer() *Writer { return c.w }

// Loop returns the loop the exchange is dispatched on.
func (c *Context) Loop() *scheduler.Loop { return c.loop }

// Logger returns the dispatcher logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// ID returns the exchange identifier used by the pending registry.
func (c *Context) ID() string { return c.id }

// RequestID returns the request ID reported to the peer. It defaults to ID.
func (c *Context) RequestID() string { return c.requestID }

// SetRequestID replaces the reported request ID.
func (c *Context) SetRequestID(id string) { c.requestID = id }

// Route returns the matched route pattern, or "" when nothing matched.
func (c *Context) Route() string { return c.route }

// Start returns the time the exchange was dispatched.
func (c *Context) Start() time.Time { return c.start }

// Holds returns the number of outstanding holds.
func (c *Context) Holds() int { return int(c.holds.Load()) }

// SetTimeout runs fn on the exchange loop after d. A non-positive delay
// schedules nothing and returns false. The exchange stays open until fn
// returns; a timer still pending when the Writer ends is cancelled.
func (c *Context) SetTimeout(d time.Duration, fn func(w *Writer)) bool {
	if d <= 0 {
		return false
	}
	c.acquire()
	id := c.loop.SetTimeout(d, func() {
		defer c.release(false)
		fn(c.w)
	})
	if id == 0 {
		c.release(false)
		return false
	}
	c.w.OnEnd(func() {
		if c.loop.KillTimer(id) {
			c.release(false)
		}
	})
	return true
}

// Go runs fn as a background task. The task receives the request context,
// which is cancelled when the peer goes away. A returned error or a panic
// is resolved locally: an error envelope when nothing was sent yet,
// otherwise an abrupt Close.
func (c *Context) Go(fn func(ctx context.Context) error) bool {
	c.acquire()
	ok := c.workers.Go(func() {
		defer c.release(false)
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("background task panicked",
					slog.String("request_id", c.requestID),
					slog.String("panic", fmt.Sprint(r)),
				)
				c.fail(api.NewServerError("internal server error"))
			}
		}()
		if err := fn(c.req.Context()); err != nil {
			c.logger.Warn("background task failed",
				slog.String("request_id", c.requestID),
				slog.String("error", err.Error()),
			)
			c.fail(err)
		}
	})
	if !ok {
		c.release(false)
	}
	return ok
}

// fail resolves a background task error.
func (c *Context) fail(err error) {
	switch c.w.State() {
	case StateEnded:
		return
	case StateIdle:
		if c.w.Begin() != nil {
			c.w.Close()
			return
		}
	case StateBegan:
	default:
		c.w.Close()
		return
	}

	status := StatusFromError(err)
	c.resp.Reset()
	c.resp.ContentType = api.ApplicationJSON
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		api.Status(c.resp, apiErr.Code, apiErr.Message)
	}
	MapError(c.resp, status)
	c.w.WriteStatus(status)
	c.w.End()
}

func (c *Context) acquire() {
	c.holds.Add(1)
}

// release drops one hold. When the last hold goes and the writer has not
// ended, the writer is ended gracefully. The dispatching frame releases its
// hold with pipeline set: a writer still idle at that point is finalized
// with an empty body.
func (c *Context) release(pipeline bool) {
	if c.holds.Add(-1) != 0 {
		return
	}
	switch c.w.State() {
	case StateEnded:
		return
	case StateIdle:
		if pipeline {
			c.resp.Reset()
		}
		c.w.Begin()
	}
	c.w.End()
}
