package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rhuss/httpd/pkg/api"
	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/observability"
)

// Writer is the only emitter of bytes for one exchange. It may be shared
// between the dispatching frame and deferred tasks; every operation checks
// the current state first and the move into StateEnded is a single
// compare-and-swap, so the first End or Close wins and later calls are
// no-ops.
//
// Only one goroutine may call Begin. The other operations are safe to race.
type Writer struct {
	state atomic.Int32
	conn  Conn
	resp  *api.Response

	// mu serializes conn calls and the status/header block. Close does not
	// take it so it can unblock a stalled Write.
	mu sync.Mutex

	aborted atomic.Bool
	failed  atomic.Bool
	written atomic.Int64
	done    chan struct{}

	hookMu sync.Mutex
	hooks  []func()
	ended  bool
}

// NewWriter binds a writer to a connection and the response it serializes.
func NewWriter(conn Conn, resp *api.Response) *Writer {
	return &Writer{
		conn: conn,
		resp: resp,
		done: make(chan struct{}),
	}
}

// State returns the current state.
func (w *Writer) State() State { return State(w.state.Load()) }

// Response returns the response the writer serializes.
func (w *Writer) Response() *api.Response { return w.resp }

// Done is closed once the writer has ended and its OnEnd hooks have run.
func (w *Writer) Done() <-chan struct{} { return w.done }

// Aborted reports whether the writer ended through Close.
func (w *Writer) Aborted() bool { return w.aborted.Load() }

// BytesWritten returns the number of body bytes accepted by the transport.
func (w *Writer) BytesWritten() int64 { return w.written.Load() }

// OnEnd registers fn to run once the writer has ended. If it already has,
// fn runs immediately.
func (w *Writer) OnEnd(fn func()) {
	w.hookMu.Lock()
	if w.ended {
		w.hookMu.Unlock()
		fn()
		return
	}
	w.hooks = append(w.hooks, fn)
	w.hookMu.Unlock()
}

// Begin marks that the response will be completed out of band.
func (w *Writer) Begin() error {
	if w.state.CompareAndSwap(int32(StateIdle), int32(StateBegan)) {
		w.trace(StateIdle, StateBegan)
		return nil
	}
	if w.State() == StateEnded {
		return nil
	}
	return ErrInvalidState
}

// WriteStatus sets the status code.
func (w *Writer) WriteStatus(code int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ok, err := w.headerPhase(); !ok {
		return err
	}
	w.resp.StatusCode = code
	return nil
}

// WriteHeader sets one header. The last value for a key wins; Content-Type
// also becomes the response content type.
func (w *Writer) WriteHeader(key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ok, err := w.headerPhase(); !ok {
		return err
	}
	if http.CanonicalHeaderKey(key) == "Content-Type" {
		w.resp.ContentType, _ = api.ParseContentType(value)
	}
	w.resp.Header.Set(key, value)
	return nil
}

// EndHeaders flushes the status line and header block.
func (w *Writer) EndHeaders() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ok, err := w.headerPhase(); !ok {
		return err
	}
	if err := w.conn.WriteHeader(w.status(), w.headerBlock(-1)); err != nil {
		w.failed.Store(true)
		return ErrTransport
	}
	if !w.state.CompareAndSwap(int32(StateBegan), int32(StateHeadersSent)) {
		return nil
	}
	w.trace(StateBegan, StateHeadersSent)
	return nil
}

// WriteBody sends one body chunk. A non-nil error means the caller must
// stop writing: ErrEnded once the writer has ended, ErrTransport when the
// peer is gone.
func (w *Writer) WriteBody(p []byte) (int, error) {
	switch w.State() {
	case StateEnded:
		return 0, ErrEnded
	case StateHeadersSent, StateBodyStreaming:
	default:
		return 0, ErrInvalidState
	}
	if w.peerGone() {
		return 0, ErrTransport
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.State() == StateEnded {
		return 0, ErrEnded
	}
	if w.state.CompareAndSwap(int32(StateHeadersSent), int32(StateBodyStreaming)) {
		w.trace(StateHeadersSent, StateBodyStreaming)
	}
	if !api.BodyAllowed(w.status()) {
		return 0, nil
	}

	n, err := w.conn.Write(p)
	w.written.Add(int64(n))
	observability.BodyBytesTotal.Add(float64(n))
	if err != nil {
		w.failed.Store(true)
		return n, ErrTransport
	}
	return n, nil
}

// Flush pushes buffered body bytes to the peer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.State() {
	case StateEnded:
		return nil
	case StateHeadersSent, StateBodyStreaming:
	default:
		return ErrInvalidState
	}
	if err := w.conn.Flush(); err != nil {
		w.failed.Store(true)
		return ErrTransport
	}
	return nil
}

// End completes the response gracefully. If headers were never sent, they
// are synthesized from the response and its body is dumped. End is
// idempotent and fails only when called before Begin.
func (w *Writer) End() error {
	if w.State() == StateIdle {
		return ErrInvalidState
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	prev := w.State()
	if prev == StateEnded || !w.state.CompareAndSwap(int32(prev), int32(StateEnded)) {
		return nil
	}
	w.trace(prev, StateEnded)

	if prev == StateBegan && !w.failed.Load() && !w.peerGone() {
		if err := w.flushResponse(); err != nil {
			slog.Debug("writer flush failed", "error", err.Error())
		}
	}
	if err := w.conn.Finish(); err != nil {
		debug.Log(debug.Transport, "finish failed", "error", err.Error())
	}
	w.finish(observability.EndGraceful)
	return nil
}

// Close tears the exchange down without a terminator. It is valid from
// any state and is a no-op once the writer has ended.
func (w *Writer) Close() error {
	for {
		prev := w.State()
		if prev == StateEnded {
			return nil
		}
		if w.state.CompareAndSwap(int32(prev), int32(StateEnded)) {
			w.trace(prev, StateEnded)
			break
		}
	}
	w.aborted.Store(true)
	if err := w.conn.Close(); err != nil {
		debug.Log(debug.Transport, "close failed", "error", err.Error())
	}
	w.finish(observability.EndAbrupt)
	return nil
}

func (w *Writer) finish(mode string) {
	observability.WriterEndsTotal.WithLabelValues(mode).Inc()

	w.hookMu.Lock()
	hooks := w.hooks
	w.hooks = nil
	w.ended = true
	w.hookMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	close(w.done)
}

// headerPhase reports whether a header operation may proceed. A writer that
// has ended yields (false, nil). mu must be held.
func (w *Writer) headerPhase() (bool, error) {
	switch w.State() {
	case StateEnded:
		return false, nil
	case StateBegan:
	default:
		return false, ErrInvalidState
	}
	if w.peerGone() {
		return false, ErrTransport
	}
	return true, nil
}

func (w *Writer) status() int {
	if w.resp.StatusCode == 0 {
		return http.StatusOK
	}
	return w.resp.StatusCode
}

// headerBlock builds the header block sent to the peer. A negative length
// leaves Content-Length to whatever the handler set.
func (w *Writer) headerBlock(length int) http.Header {
	h := w.resp.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if !api.BodyAllowed(w.status()) {
		h.Del("Content-Type")
		h.Del("Content-Length")
		return h
	}
	if ct := w.resp.ContentTypeHeader(); ct != "" {
		h.Set("Content-Type", ct)
	}
	if length >= 0 {
		h.Set("Content-Length", strconv.Itoa(length))
	}
	return h
}

// flushResponse sends the whole response in one go. mu must be held.
func (w *Writer) flushResponse() error {
	if err := w.resp.DumpBody(); err != nil {
		return err
	}
	body := w.resp.Body
	if !api.BodyAllowed(w.status()) {
		body = nil
	}
	if err := w.conn.WriteHeader(w.status(), w.headerBlock(len(body))); err != nil {
		w.failed.Store(true)
		return err
	}
	if len(body) == 0 {
		return nil
	}
	n, err := w.conn.Write(body)
	w.written.Add(int64(n))
	observability.BodyBytesTotal.Add(float64(n))
	if err != nil {
		w.failed.Store(true)
	}
	return err
}

func (w *Writer) peerGone() bool {
	if w.failed.Load() {
		return true
	}
	ctx := w.conn.Context()
	if ctx == nil {
		return false
	}
	return ctx.Err() != nil
}

func (w *Writer) trace(from, to State) {
	if debug.TraceIsEnabled(debug.Transport) {
		slog.Log(context.Background(), debug.LevelTrace, "writer transition",
			"debug", debug.Transport,
			"from", from.String(),
			"to", to.String(),
		)
	}
}
