package types

import (
	"sync"
	"time"
)

// Progress tracks completed work against a pre-counted total and drives a
// ProgressFunc sink. Emitted percentages are strictly monotonic within one
// Progress; a non-zero interval throttles intermediate emissions. Safe for
// concurrent use.
type Progress struct {
	sink  ProgressFunc
	every time.Duration

	mu    sync.Mutex
	done  int
	total int
	pct   int
	last  time.Time
}

// NewProgress creates a meter for total units of work. every bounds how
// often Bump may emit; zero disables throttling.
func NewProgress(total int, every time.Duration, sink ProgressFunc) *Progress {
	return &Progress{sink: sink, every: every, total: total}
}

// Bump records one completed unit and emits the new percentage when it
// advanced and the throttle interval has passed.
func (p *Progress) Bump() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if p.total <= 0 {
		return
	}
	pct := p.done * 100 / p.total
	if pct > 100 {
		pct = 100
	}
	if pct <= p.pct || time.Since(p.last) < p.every {
		return
	}
	p.pct = pct
	p.last = time.Now()
	p.sink.Emit(pct)
}

// Force emits pct immediately, bypassing the throttle. Progress never moves
// backward.
func (p *Progress) Force(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pct < p.pct {
		pct = p.pct
	}
	p.pct = pct
	p.last = time.Now()
	p.sink.Emit(pct)
}
