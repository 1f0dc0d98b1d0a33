package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/httpd/pkg/api"
)

func TestInFlightRegistryRegisterAndCancel(t *testing.T) {
	r := NewInFlightRegistry()
	w := NewWriter(newRecordingConn(), api.NewResponse())
	w.Begin()

	r.Register("req_abc123", w)
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	if !r.Cancel("req_abc123") {
		t.Error("Cancel should return true for registered ID")
	}
	if !w.Aborted() {
		t.Error("writer should have been closed")
	}

	// The entry is removed when the writer ends.
	if r.Cancel("req_abc123") {
		t.Error("Cancel should return false after already cancelled")
	}
}

func TestInFlightRegistryCancelUnknown(t *testing.T) {
	r := NewInFlightRegistry()
	if r.Cancel("req_nonexistent") {
		t.Error("Cancel should return false for unknown ID")
	}
}

func TestInFlightRegistryRemovedOnEnd(t *testing.T) {
	r := NewInFlightRegistry()
	w := NewWriter(newRecordingConn(), api.NewResponse())
	w.Begin()
	r.Register("req_end", w)

	w.End()
	if r.Len() != 0 {
		t.Errorf("Len() = %d after End, want 0", r.Len())
	}
	if w.Aborted() {
		t.Error("graceful end reported as aborted")
	}
}

func TestInFlightRegistryWait(t *testing.T) {
	r := NewInFlightRegistry()
	w := NewWriter(newRecordingConn(), api.NewResponse())
	w.Begin()
	r.Register("req_wait", w)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); err == nil {
		t.Error("Wait returned nil with a pending exchange")
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		w.End()
	}()
	if err := r.Wait(context.Background()); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestInFlightRegistryCloseAll(t *testing.T) {
	r := NewInFlightRegistry()
	var writers []*Writer
	for _, id := range []string{"a", "b", "c"} {
		w := NewWriter(newRecordingConn(), api.NewResponse())
		w.Begin()
		r.Register(id, w)
		writers = append(writers, w)
	}

	if n := r.CloseAll(); n != 3 {
		t.Errorf("CloseAll() = %d, want 3", n)
	}
	for i, w := range writers {
		if !w.Aborted() {
			t.Errorf("writer %d not aborted", i)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestInFlightRegistryConcurrentAccess(t *testing.T) {
	r := NewInFlightRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := api.NewRequestID()
			w := NewWriter(newRecordingConn(), api.NewResponse())
			w.Begin()
			r.Register(id, w)
			if i%2 == 0 {
				r.Cancel(id)
			} else {
				w.End()
			}
		}(i)
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}
