package transport

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rhuss/httpd/pkg/api"
)

type testPipeline struct {
	d        *Dispatcher
	preRuns  atomic.Int32
	postRuns atomic.Int32
}

func newTestPipeline(t *testing.T, pre Processor) *testPipeline {
	t.Helper()
	p := &testPipeline{}
	p.d = NewDispatcher(Options{
		Preprocessor: func(req *api.Request, resp *api.Response) int {
			p.preRuns.Add(1)
			resp.ContentType = api.ApplicationJSON
			if pre != nil {
				return pre(req, resp)
			}
			return 0
		},
		Postprocessor: func(*api.Request, *api.Response) int {
			p.postRuns.Add(1)
			return 0
		},
		Middleware: []Middleware{Recovery(), RequestID()},
		Loops:      2,
	})
	t.Cleanup(func() { p.d.Shutdown(context.Background()) })
	return p
}

func (p *testPipeline) serve(t *testing.T, pattern string, h Handler, method, path string) (*recordingConn, *Writer) {
	t.Helper()
	var route *Route
	if h != nil {
		p.d.Handle(pattern, h)
		routes := p.d.Routes()
		route = &routes[len(routes)-1]
	}
	conn := newRecordingConn()
	req := api.NewRequest(conn.Context(), method, path, nil, nil)
	w := p.d.Dispatch(conn, req, route)
	waitDone(t, w)
	return conn, w
}

func TestDispatchInlineEnvelope(t *testing.T) {
	p := newTestPipeline(t, nil)
	conn, _ := p.serve(t, "GET /query", HandlerFunc(func(req *api.Request, resp *api.Response) int {
		resp.Set("name", "httpd")
		return 0
	}), "GET", "/query")

	status, header, _, _, _ := conn.snapshot()
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	obj := conn.envelope(t)
	if obj.Get("code").Int() != 0 || obj.Get("message").String() != "OK" {
		t.Errorf("envelope = %v", obj)
	}
	if obj.Get("name").String() != "httpd" {
		t.Errorf("name = %v, want httpd", obj.Get("name"))
	}
	if header.Get(RequestIDHeader) == "" {
		t.Error("missing X-Request-ID header")
	}
	if n := p.postRuns.Load(); n != 1 {
		t.Errorf("postprocessor ran %d times, want 1", n)
	}
}

func TestDispatchKeepsHandlerEnvelope(t *testing.T) {
	p := newTestPipeline(t, nil)
	conn, _ := p.serve(t, "POST /login", HandlerFunc(func(req *api.Request, resp *api.Response) int {
		api.Status(resp, 10003, "Password wrong")
		return http.StatusBadRequest
	}), "POST", "/login")

	status, _, _, _, _ := conn.snapshot()
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	obj := conn.envelope(t)
	if obj.Get("code").Int() != 10003 || obj.Get("message").String() != "Password wrong" {
		t.Errorf("envelope = %v", obj)
	}
}

func TestDispatchErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
	}{
		{"bad request", http.StatusBadRequest, "Bad Request"},
		{"unauthorized", http.StatusUnauthorized, "Unauthorized"},
		{"server error", http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, nil)
			conn, _ := p.serve(t, "POST /x", HandlerFunc(func(*api.Request, *api.Response) int {
				return tt.status
			}), "POST", "/x")

			status, _, _, _, _ := conn.snapshot()
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			obj := conn.envelope(t)
			if got := obj.Get("code").Int(); got != int64(tt.status) {
				t.Errorf("code = %d, want %d", got, tt.status)
			}
			if got := obj.Get("message").String(); got != tt.message {
				t.Errorf("message = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestDispatchNotFound(t *testing.T) {
	p := newTestPipeline(t, nil)
	conn, _ := p.serve(t, "", nil, "GET", "/missing")

	status, _, _, _, _ := conn.snapshot()
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if got := conn.envelope(t).Get("message").String(); got != "Not Found" {
		t.Errorf("message = %q, want Not Found", got)
	}
}

func TestDispatchPreprocessorShortCircuit(t *testing.T) {
	p := newTestPipeline(t, func(req *api.Request, resp *api.Response) int {
		if req.Method == http.MethodOptions {
			resp.Header.Set("Access-Control-Allow-Origin", "*")
			return http.StatusNoContent
		}
		return 0
	})

	var handled atomic.Bool
	conn, _ := p.serve(t, "OPTIONS /x", HandlerFunc(func(*api.Request, *api.Response) int {
		handled.Store(true)
		return 0
	}), "OPTIONS", "/x")

	status, header, body, _, _ := conn.snapshot()
	if status != http.StatusNoContent {
		t.Errorf("status = %d, want 204", status)
	}
	if len(body) != 0 {
		t.Errorf("body = %q, want empty", body)
	}
	if header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
	if handled.Load() {
		t.Error("handler ran after short-circuit")
	}
	if n := p.postRuns.Load(); n != 0 {
		t.Errorf("postprocessor ran %d times, want 0", n)
	}
}

func TestDispatchTimerDeferred(t *testing.T) {
	p := newTestPipeline(t, nil)
	conn, w := p.serve(t, "GET /setTimeout", ContextHandlerFunc(func(c *Context) int {
		c.Response().Set("start_ms", 1)
		c.SetTimeout(20*time.Millisecond, func(w *Writer) {
			w.Begin()
			w.Response().Set("end_ms", 2)
			api.Status(w.Response(), 0, "OK")
			w.End()
		})
		return Pending
	}), "GET", "/setTimeout")

	obj := conn.envelope(t)
	if obj.Get("start_ms").Int() != 1 || obj.Get("end_ms").Int() != 2 {
		t.Errorf("body = %v", obj)
	}
	if w.Aborted() {
		t.Error("timer completion aborted the writer")
	}
	if n := p.postRuns.Load(); n != 0 {
		t.Errorf("postprocessor ran %d times on deferred path, want 0", n)
	}
	if n := p.d.InFlight().Len(); n != 0 {
		t.Errorf("in-flight = %d after completion, want 0", n)
	}
}

func TestDispatchPendingQuirk(t *testing.T) {
	p := newTestPipeline(t, nil)
	conn, _ := p.serve(t, "GET /setTimeout", ContextHandlerFunc(func(c *Context) int {
		c.Response().Set("start_ms", 1)
		if c.SetTimeout(0, func(*Writer) {}) {
			t.Error("SetTimeout(0) scheduled a timer")
		}
		return Pending
	}), "GET", "/setTimeout")

	status, _, body, finished, _ := conn.snapshot()
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if len(body) != 0 {
		t.Errorf("body = %q, want empty", body)
	}
	if finished != 1 {
		t.Errorf("finished = %d, want 1", finished)
	}
	if n := p.postRuns.Load(); n != 0 {
		t.Errorf("postprocessor ran %d times, want 0", n)
	}
}

func TestDispatchBeginMakesDeferred(t *testing.T) {
	p := newTestPipeline(t, nil)
	conn, _ := p.serve(t, "GET /x", ContextHandlerFunc(func(c *Context) int {
		c.Writer().Begin()
		c.Response().Set("deferred", true)
		// The returned status is ignored once the writer has begun.
		return http.StatusTeapot
	}), "GET", "/x")

	status, _, _, _, _ := conn.snapshot()
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	obj := conn.envelope(t)
	if !obj.Get("deferred").Bool() {
		t.Errorf("body = %v", obj)
	}
	if obj.Has("code") {
		t.Error("deferred completion got an inline envelope")
	}
	if n := p.postRuns.Load(); n != 0 {
		t.Errorf("postprocessor ran %d times, want 0", n)
	}
}

func TestDispatchBackgroundTask(t *testing.T) {
	p := newTestPipeline(t, nil)
	conn, _ := p.serve(t, "GET /stream", WriterHandlerFunc(func(req *api.Request, w *Writer) {
		w.Begin()
		w.WriteHeader("Content-Type", "text/plain")
		w.WriteHeader("Content-Length", "6")
		w.EndHeaders()
		w.WriteBody([]byte("abc"))
		w.WriteBody([]byte("def"))
		w.End()
	}), "GET", "/stream")

	_, header, body, finished, _ := conn.snapshot()
	if string(body) != "abcdef" {
		t.Errorf("body = %q, want abcdef", body)
	}
	if header.Get("Content-Length") != "6" {
		t.Errorf("Content-Length = %q", header.Get("Content-Length"))
	}
	if finished != 1 {
		t.Errorf("finished = %d, want 1", finished)
	}
	if n := p.postRuns.Load(); n != 0 {
		t.Errorf("postprocessor ran %d times, want 0", n)
	}
}

func TestDispatchBackgroundTaskEndsOnRelease(t *testing.T) {
	p := newTestPipeline(t, nil)
	conn, w := p.serve(t, "GET /x", ContextHandlerFunc(func(c *Context) int {
		c.Go(func(context.Context) error {
			c.Writer().Begin()
			c.Writer().Response().Set("done", true)
			return nil
		})
		return Pending
	}), "GET", "/x")

	if w.Aborted() {
		t.Error("writer aborted")
	}
	if !conn.envelope(t).Get("done").Bool() {
		t.Error("last hold release did not end the writer gracefully")
	}
}

func TestDispatchBackgroundTaskError(t *testing.T) {
	p := newTestPipeline(t, nil)
	conn, _ := p.serve(t, "GET /x", ContextHandlerFunc(func(c *Context) int {
		c.Go(func(context.Context) error {
			return api.NewNotFoundError("no such file")
		})
		return Pending
	}), "GET", "/x")

	status, _, _, _, _ := conn.snapshot()
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if got := conn.envelope(t).Get("message").String(); got != "no such file" {
		t.Errorf("message = %q", got)
	}
}

func TestDispatchBackgroundTaskErrorAfterHeaders(t *testing.T) {
	p := newTestPipeline(t, nil)
	_, w := p.serve(t, "GET /x", ContextHandlerFunc(func(c *Context) int {
		c.Go(func(context.Context) error {
			w := c.Writer()
			w.Begin()
			w.EndHeaders()
			return errors.New("read failed")
		})
		return Pending
	}), "GET", "/x")

	if !w.Aborted() {
		t.Error("error after headers did not close the writer")
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	p := newTestPipeline(t, nil)
	conn, _ := p.serve(t, "GET /panic", HandlerFunc(func(*api.Request, *api.Response) int {
		panic("boom")
	}), "GET", "/panic")

	status, _, _, _, _ := conn.snapshot()
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	obj := conn.envelope(t)
	if obj.Get("code").Int() != 500 {
		t.Errorf("code = %v, want 500", obj.Get("code"))
	}

	// The loop keeps serving after a panic.
	conn, _ = p.serve(t, "GET /ok", HandlerFunc(func(*api.Request, *api.Response) int { return 0 }), "GET", "/ok")
	if status, _, _, _, _ := conn.snapshot(); status != http.StatusOK {
		t.Errorf("status after panic = %d, want 200", status)
	}
}

func TestDispatchRecoversProcessorPanic(t *testing.T) {
	boom := func(*api.Request, *api.Response) int { panic("boom") }
	tests := []struct {
		name string
		opts Options
	}{
		{"preprocessor", Options{Preprocessor: boom}},
		{"postprocessor", Options{Postprocessor: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Loops = 1
			tt.opts.Middleware = []Middleware{Recovery()}
			d := NewDispatcher(tt.opts)
			t.Cleanup(func() { d.Shutdown(context.Background()) })
			d.Handle("GET /x", HandlerFunc(func(*api.Request, *api.Response) int { return 0 }))
			route := &d.Routes()[0]

			conn := newRecordingConn()
			w := d.Dispatch(conn, api.NewRequest(conn.Context(), "GET", "/x", nil, nil), route)
			waitDone(t, w)

			status, _, _, finished, _ := conn.snapshot()
			if status != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", status)
			}
			if finished != 1 {
				t.Errorf("finished = %d, want 1", finished)
			}
			obj := conn.envelope(t)
			if obj.Get("code").Int() != 500 {
				t.Errorf("code = %v, want 500", obj.Get("code"))
			}
			if n := d.InFlight().Len(); n != 0 {
				t.Errorf("in-flight = %d, want 0", n)
			}

			// The same loop serves the next exchange.
			conn = newRecordingConn()
			w = d.Dispatch(conn, api.NewRequest(conn.Context(), "GET", "/x", nil, nil), route)
			waitDone(t, w)
		})
	}
}

func TestDispatchAbortsBegunWriterOnPanic(t *testing.T) {
	d := NewDispatcher(Options{Loops: 1})
	t.Cleanup(func() { d.Shutdown(context.Background()) })
	d.Handle("GET /x", ContextHandlerFunc(func(c *Context) int {
		c.Writer().Begin()
		panic("late")
	}))
	route := &d.Routes()[0]

	conn := newRecordingConn()
	w := d.Dispatch(conn, api.NewRequest(conn.Context(), "GET", "/x", nil, nil), route)
	waitDone(t, w)

	if !w.Aborted() {
		t.Error("writer not aborted")
	}
	if _, _, _, _, closed := conn.snapshot(); closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}
}

func TestShutdownAbortsPending(t *testing.T) {
	p := newTestPipeline(t, nil)
	p.d.Handle("GET /hang", ContextHandlerFunc(func(c *Context) int {
		c.Writer().Begin()
		c.Go(func(context.Context) error {
			<-c.Writer().Done()
			return nil
		})
		return Pending
	}))
	routes := p.d.Routes()
	conn := newRecordingConn()
	w := p.d.Dispatch(conn, api.NewRequest(conn.Context(), "GET", "/hang", nil, nil), &routes[len(routes)-1])

	deadline := time.Now().Add(time.Second)
	for p.d.InFlight().Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.d.Shutdown(ctx); err == nil {
		t.Error("Shutdown returned nil with a hanging exchange")
	}
	waitDone(t, w)
	if !w.Aborted() {
		t.Error("pending exchange was not aborted")
	}
}

func TestPatternParams(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{"GET /ping", nil},
		{"GET /group/{group_name}/user/{user_id}", []string{"group_name", "user_id"}},
		{"GET /downloads/{path...}", []string{"path"}},
		{"GET /{$}", nil},
	}
	for _, tt := range tests {
		if got := PatternParams(tt.pattern); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PatternParams(%q) = %v, want %v", tt.pattern, got, tt.want)
		}
	}
}
