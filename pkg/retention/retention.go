// Package retention prunes stale uploads on a cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/observability"
)

// DefaultCron runs the pruner at the top of every hour.
const DefaultCron = "0 * * * *"

// retryDelay is how long the loop waits after the next tick could not be
// computed.
const retryDelay = 30 * time.Second

// ErrInvalidCron is returned for expressions gronx cannot parse.
var ErrInvalidCron = errors.New("invalid cron expression")

// Pruner deletes uploads saved before a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

// Validate reports whether expr is a usable cron expression.
func Validate(expr string) error {
	if expr == "" || !gronx.New().IsValid(expr) {
		return fmt.Errorf("%w: %q", ErrInvalidCron, expr)
	}
	return nil
}

// Manager runs a Pruner whenever its cron expression is due.
type Manager struct {
	store  Pruner
	cron   string
	maxAge time.Duration
	logger *slog.Logger

	now  func() time.Time
	next func(after time.Time) (time.Time, error)

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	running bool
}

// Start validates cron and launches the schedule loop. Each tick removes
// uploads older than maxAge. The loop stops when ctx is cancelled or Stop
// is called.
func Start(ctx context.Context, store Pruner, cron string, maxAge time.Duration) (*Manager, error) {
	if err := Validate(cron); err != nil {
		return nil, err
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", maxAge)
	}
	m := newManager(store, cron, maxAge)
	m.start(ctx)
	return m, nil
}

func newManager(store Pruner, cron string, maxAge time.Duration) *Manager {
	return &Manager{
		store:  store,
		cron:   cron,
		maxAge: maxAge,
		logger: slog.Default(),
		now:    time.Now,
		next: func(after time.Time) (time.Time, error) {
			return gronx.NextTickAfter(cron, after, false)
		},
		done: make(chan struct{}),
	}
}

func (m *Manager) start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("upload retention enabled", "cron", m.cron, "max_age", m.maxAge)
	go m.loop(ctx)
}

// Stop ends the schedule loop and waits for a running prune to return.
func (m *Manager) Stop() {
	m.cancel()
	<-m.done
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)
	for {
		wait := retryDelay
		next, err := m.next(m.now())
		if err != nil {
			m.logger.Error("computing next retention tick", "cron", m.cron, "error", err)
		} else {
			wait = max(next.Sub(m.now()), 0)
			debug.Log(debug.Retention, "next prune scheduled", "at", next, "wait", wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err == nil {
			m.runJob(ctx)
		}
	}
}

// runJob skips a tick while the previous prune is still running.
func (m *Manager) runJob(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("pruning uploads", "error", err)
	}
}

// RunNow prunes immediately and returns the number of removed uploads.
func (m *Manager) RunNow(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.maxAge)
	n, err := m.store.Prune(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("prune before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	observability.UploadsPrunedTotal.Add(float64(n))
	debug.Log(debug.Retention, "uploads pruned", "count", n, "cutoff", cutoff)
	if n > 0 {
		m.logger.Info("uploads pruned", "count", n)
	}
	return n, nil
}
