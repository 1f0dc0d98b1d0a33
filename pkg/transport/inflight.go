package transport

import (
	"context"
	"sync"
	"time"

	"github.com/rhuss/httpd/pkg/observability"
)

// InFlightRegistry tracks deferred exchanges whose writer has not ended,
// keyed by exchange ID. Shutdown waits on it and aborts what remains at
// the deadline.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]*Writer
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]*Writer),
	}
}

// Register adds a deferred exchange. The entry is removed when the writer
// ends.
func (r *InFlightRegistry) Register(id string, w *Writer) {
	r.mu.Lock()
	r.entries[id] = w
	r.mu.Unlock()
	observability.PendingExchanges.Inc()

	w.OnEnd(func() { r.Remove(id) })
}

// Cancel aborts an in-flight exchange with Close. Returns true if the
// exchange was found, false if it was not registered (either already
// completed or never existed).
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	w, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	w.Close()
	return true
}

// Remove removes an exchange from the registry without ending it.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		observability.PendingExchanges.Dec()
	}
}

// Len returns the number of in-flight exchanges.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Wait blocks until the registry is empty or ctx is done.
func (r *InFlightRegistry) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for r.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// CloseAll aborts every in-flight exchange and returns how many there were.
func (r *InFlightRegistry) CloseAll() int {
	r.mu.Lock()
	writers := make([]*Writer, 0, len(r.entries))
	for _, w := range r.entries {
		writers = append(writers, w)
	}
	r.mu.Unlock()

	for _, w := range writers {
		w.Close()
	}
	return len(writers)
}
