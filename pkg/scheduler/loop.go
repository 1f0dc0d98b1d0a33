// Package scheduler provides the execution contexts that drive exchanges:
// cooperative event loops with timers, a round-robin pool of loops, and a
// tracked spawner for background tasks.
//
// A Loop runs every task on one goroutine in FIFO order, so callbacks
// posted to the same loop never race with each other. Timer callbacks are
// posted to the loop that registered them.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/observability"
)

// ErrStopped is returned when work is submitted to a stopped loop.
var ErrStopped = errors.New("scheduler: loop stopped")

// TimerID identifies a timer registered on a Loop. The zero value never
// names a live timer.
type TimerID uint64

type timer struct {
	t        *time.Timer
	interval time.Duration
	fn       func()
}

// Loop is a single-goroutine task executor.
type Loop struct {
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	timers  map[TimerID]*timer
	stopped bool

	nextID   atomic.Uint64
	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop starts a loop goroutine. A nil logger uses slog.Default().
func NewLoop(name string, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		name:   name,
		logger: logger,
		timers: make(map[TimerID]*timer),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Name returns the loop name used in logs.
func (l *Loop) Name() string { return l.name }

// Post enqueues fn to run on the loop. It never blocks and returns false
// once the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to return. It must not be called
// from a task already running on the same loop.
func (l *Loop) Do(fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	<-done
	return nil
}

// SetTimeout runs fn once on the loop after d. It returns 0 when the loop
// is stopped.
func (l *Loop) SetTimeout(d time.Duration, fn func()) TimerID {
	return l.addTimer(d, 0, fn)
}

// SetInterval runs fn on the loop every d until the timer is killed.
func (l *Loop) SetInterval(d time.Duration, fn func()) TimerID {
	if d <= 0 {
		d = time.Millisecond
	}
	return l.addTimer(d, d, fn)
}

// KillTimer cancels a timer. It reports whether the timer was still live.
func (l *Loop) KillTimer(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	tm, ok := l.timers[id]
	if !ok {
		return false
	}
	delete(l.timers, id)
	tm.t.Stop()
	return true
}

// Timers returns the number of live timers.
func (l *Loop) Timers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Stop kills all timers, runs the tasks already queued, and waits for the
// loop goroutine to exit. It must not be called from the loop itself.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		for id, tm := range l.timers {
			tm.t.Stop()
			delete(l.timers, id)
		}
		l.mu.Unlock()
		close(l.quit)
	})
	<-l.done
}

func (l *Loop) addTimer(d, interval time.Duration, fn func()) TimerID {
	id := TimerID(l.nextID.Add(1))
	tm := &timer{interval: interval, fn: fn}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return 0
	}
	l.timers[id] = tm
	tm.t = time.AfterFunc(d, func() {
		l.Post(func() { l.fire(id) })
	})
	debug.Log(debug.Scheduler, "timer set", "loop", l.name, "id", id, "delay", d, "interval", interval)
	return id
}

func (l *Loop) fire(id TimerID) {
	l.mu.Lock()
	tm, ok := l.timers[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	if tm.interval == 0 {
		delete(l.timers, id)
	} else {
		tm.t.Reset(tm.interval)
	}
	l.mu.Unlock()

	observability.TimersFiredTotal.Inc()
	tm.fn()
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.wake:
			l.drain()
		case <-l.quit:
			l.drain()
			return
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked",
				slog.String("loop", l.name),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}
