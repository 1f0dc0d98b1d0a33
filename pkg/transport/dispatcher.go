package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/observability"
	"github.com/rhuss/httpd/pkg/scheduler"
)

// Options configures a Dispatcher.
type Options struct {
	// Preprocessor runs before routing. A non-zero status short-circuits
	// the exchange.
	Preprocessor Processor

	// Postprocessor runs after an inline handler, never after a deferred one.
	Postprocessor Processor

	// ErrorMapper formats the body of a non-success status. Defaults to
	// MapError.
	ErrorMapper func(resp *api.Response, status int)

	// Middleware wraps every route handler, the not-found handler included.
	Middleware []Middleware

	// Loops is the number of event loops. Zero uses one per CPU.
	Loops int

	Logger *slog.Logger
}

// Dispatcher runs the exchange pipeline: preprocessor, route handler,
// postprocessor on the inline path, and error mapping. Each exchange runs
// on one loop of a pool; its timers fire on the same loop.
type Dispatcher struct {
	pre      Processor
	post     Processor
	mapError func(resp *api.Response, status int)
	chain    Middleware
	logger   *slog.Logger
	routes   []Route
	notFound Handler
	pool     *scheduler.Pool
	workers  *scheduler.Workers
	inflight *InFlightRegistry
}

// NewDispatcher starts the loops and background workers of a dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mapError := opts.ErrorMapper
	if mapError == nil {
		mapError = MapError
	}
	d := &Dispatcher{
		pre:      opts.Preprocessor,
		post:     opts.Postprocessor,
		mapError: mapError,
		chain:    Chain(opts.Middleware...),
		logger:   logger,
		pool:     scheduler.NewPool(opts.Loops, logger),
		workers:  scheduler.NewWorkers(logger),
		inflight: NewInFlightRegistry(),
	}
	d.notFound = d.chain(HandlerFunc(func(*api.Request, *api.Response) int {
		return http.StatusNotFound
	}))
	return d
}

// Handle registers h for pattern. Patterns use net/http ServeMux syntax.
func (d *Dispatcher) Handle(pattern string, h Handler) {
	d.routes = append(d.routes, Route{
		Pattern: pattern,
		Handler: d.chain(h),
		Params:  PatternParams(pattern),
	})
}

// Routes returns the registered routes for the transport adapter to match.
func (d *Dispatcher) Routes() []Route {
	return d.routes
}

// InFlight returns the registry of deferred exchanges.
func (d *Dispatcher) InFlight() *InFlightRegistry {
	return d.inflight
}

// Pool returns the loop pool.
func (d *Dispatcher) Pool() *scheduler.Pool {
	return d.pool
}

// Dispatch starts one exchange. route is nil when nothing matched. The
// returned writer's Done channel closes when the exchange has ended.
func (d *Dispatcher) Dispatch(conn Conn, req *api.Request, route *Route) *Writer {
	resp := api.NewResponse()
	w := NewWriter(conn, resp)
	loop := d.pool.Next()
	c := newContext(req, w, loop, d.workers, d.logger)

	h := d.notFound
	if route != nil {
		h = route.Handler
		c.route = route.Pattern
	}

	var completion atomic.Value
	w.OnEnd(func() {
		mode, _ := completion.Load().(string)
		if mode == "" {
			mode = observability.CompletionDeferred
		}
		observability.RecordExchange(req.Method, resp.StatusCode, mode, time.Since(c.Start()))
	})

	debug.Log(debug.Dispatch, "dispatch", "method", req.Method, "path", req.Path, "route", c.route, "loop", loop.Name())
	if !loop.Post(func() { d.run(c, h, &completion) }) {
		completion.Store(observability.CompletionShort)
		resp.StatusCode = http.StatusServiceUnavailable
		d.mapError(resp, resp.StatusCode)
		w.Begin()
		w.End()
	}
	return w
}

func (d *Dispatcher) run(c *Context, h Handler, completion *atomic.Value) {
	req, resp, w := c.req, c.resp, c.w
	defer func() {
		if r := recover(); r != nil {
			d.abort(c, r, completion)
		}
	}()

	if d.pre != nil {
		if status := d.pre(req, resp); status != 0 {
			completion.Store(observability.CompletionShort)
			d.finalize(c, status, false)
			c.release(false)
			return
		}
	}

	status := h.Serve(c)
	if status == Pending || w.State() != StateIdle {
		d.inflight.Register(c.ID(), w)
		c.release(true)
		return
	}

	completion.Store(observability.CompletionInline)
	d.finalize(c, status, true)
	c.release(false)
}

// abort ends an exchange whose pipeline panicked outside the route
// middleware, in the preprocessor or the postprocessor. An Idle writer
// still gets a 500 envelope; a begun one is torn down.
func (d *Dispatcher) abort(c *Context, r any, completion *atomic.Value) {
	c.logger.Error("pipeline panicked",
		slog.String("request_id", c.RequestID()),
		slog.String("path", c.req.Path),
		slog.String("panic", fmt.Sprint(r)),
	)
	completion.Store(observability.CompletionShort)
	if c.w.State() == StateIdle {
		c.resp.Reset()
		api.Status(c.resp, http.StatusInternalServerError, fmt.Sprintf("internal server error: %v", r))
		d.finalize(c, http.StatusInternalServerError, false)
	} else {
		c.w.Close()
	}
	c.release(false)
}

// finalize completes an exchange on the dispatching frame.
func (d *Dispatcher) finalize(c *Context, status int, inline bool) {
	req, resp := c.req, c.resp
	if status == 0 {
		status = http.StatusOK
	}

	if inline {
		if IsSuccess(status) && (!resp.Populated() || resp.Structured()) {
			if !resp.Has("code") {
				resp.Set("code", 0)
			}
			if !resp.Has("message") {
				resp.Set("message", api.StatusText(0))
			}
		}
		if d.post != nil {
			if s := d.post(req, resp); s != 0 {
				status = s
			}
		}
	}

	resp.StatusCode = status
	if !IsSuccess(status) {
		d.mapError(resp, status)
	}
	c.w.Begin()
	c.w.End()
}

// Shutdown waits for deferred exchanges until ctx is done, aborts the rest,
// then stops the workers and loops.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	err := d.inflight.Wait(ctx)
	if err != nil {
		n := d.inflight.CloseAll()
		d.logger.Warn("aborted in-flight exchanges", slog.Int("count", n))
	}

	d.workers.Close()
	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if werr := d.workers.Wait(waitCtx); werr != nil {
		d.logger.Warn("background tasks still running", slog.Int("count", d.workers.Active()))
	}
	d.pool.Stop()
	return err
}

// PatternParams returns the wildcard names of a ServeMux pattern in order.
// "{path...}" yields "path"; "{$}" is skipped.
func PatternParams(pattern string) []string {
	var names []string
	for {
		i := strings.IndexByte(pattern, '{')
		if i < 0 {
			return names
		}
		j := strings.IndexByte(pattern[i:], '}')
		if j < 0 {
			return names
		}
		name := strings.TrimSuffix(pattern[i+1:i+j], "...")
		if name != "$" && name != "" {
			names = append(names, name)
		}
		pattern = pattern[i+j+1:]
	}
}
