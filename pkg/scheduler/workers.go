package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rhuss/httpd/pkg/observability"
)

// Workers spawns background tasks on their own goroutines and tracks them
// so shutdown can wait for them. Tasks have no timeout.
type Workers struct {
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewWorkers creates a task spawner. A nil logger uses slog.Default().
func NewWorkers(logger *slog.Logger) *Workers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workers{logger: logger}
}

// Go runs fn on a new goroutine. A panic in fn is recovered and logged.
// It returns false after Close.
func (w *Workers) Go(fn func()) bool {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return false
	}
	w.wg.Add(1)
	w.mu.RUnlock()

	w.active.Add(1)
	observability.BackgroundTasksActive.Inc()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("background task panicked",
					slog.String("panic", fmt.Sprint(r)),
					slog.String("stack", string(debug.Stack())),
				)
			}
			w.active.Add(-1)
			observability.BackgroundTasksActive.Dec()
			w.wg.Done()
		}()
		fn()
	}()
	return true
}

// Active returns the number of running tasks.
func (w *Workers) Active() int { return int(w.active.Load()) }

// Close stops accepting new tasks. Running tasks are not interrupted.
func (w *Workers) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// Wait blocks until every running task has returned or ctx is done. Call
// Close first so no task is added while waiting.
func (w *Workers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
