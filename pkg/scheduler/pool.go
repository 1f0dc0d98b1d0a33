package scheduler

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
)

// Pool is a fixed set of loops handed out round-robin.
type Pool struct {
	loops []*Loop
	next  atomic.Uint64
}

// NewPool starts n loops. n <= 0 uses runtime.NumCPU().
func NewPool(n int, logger *slog.Logger) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &Pool{loops: make([]*Loop, n)}
	for i := range p.loops {
		p.loops[i] = NewLoop(fmt.Sprintf("loop-%d", i), logger)
	}
	return p
}

// Next returns the next loop in round-robin order.
func (p *Pool) Next() *Loop {
	i := p.next.Add(1) - 1
	return p.loops[i%uint64(len(p.loops))]
}

// Size returns the number of loops.
func (p *Pool) Size() int { return len(p.loops) }

// Timers returns the number of live timers across all loops.
func (p *Pool) Timers() int {
	n := 0
	for _, l := range p.loops {
		n += l.Timers()
	}
	return n
}

// Stop stops every loop.
func (p *Pool) Stop() {
	for _, l := range p.loops {
		l.Stop()
	}
}
