// Package monitor provides the resource monitoring subsystem for the
// migration pipeline. A background sampler measures system CPU and memory
// usage on a fixed interval and derives a concurrency budget: how many more
// worker threads this process could run before breaching the configured CPU
// ceiling, and whether new work submission should pause because memory is
// over its limit.
//
// When the platform offers no usable sampling facility the monitor degrades
// to a static budget (cores × cpu_limit) and never throttles.
package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/logging"
)

// Default option values.
const (
	DefaultCPULimit    = 0.8
	DefaultMemoryLimit = 0.8
	DefaultInterval    = 1 * time.Second

	// waitPoll is how often WaitForResources rechecks the throttle signal.
	waitPoll = 500 * time.Millisecond
)

// Options configures a Monitor.
type Options struct {
	// CPULimit is the fraction of total CPU capacity this process may
	// consume. Values outside (0, 1] fall back to DefaultCPULimit.
	CPULimit float64

	// MemoryLimit is the system memory usage fraction above which
	// ShouldThrottle reports true. Values outside (0, 1] fall back to
	// DefaultMemoryLimit.
	MemoryLimit float64

	// Interval is the sampling period.
	Interval time.Duration

	// Sampler overrides the platform sampler. Nil selects the platform
	// implementation, degrading to a static budget if unavailable.
	Sampler Sampler
}

// Budget is one computed snapshot of the resource state.
type Budget struct {
	// SystemCPU is the sampled whole-system CPU usage, as a fraction of
	// total capacity.
	SystemCPU float64

	// ProcessCPU is this process's CPU usage, as a fraction of total
	// capacity.
	ProcessCPU float64

	// MemoryUsed is the sampled system memory usage fraction.
	MemoryUsed float64

	// MaxThreads is the derived concurrency budget, always ≥ 1.
	MaxThreads int

	// Degraded reports that sampling is unavailable and the budget is
	// the static fallback.
	Degraded bool

	// SampledAt is when this budget was computed.
	SampledAt time.Time
}

// Monitor samples resource usage in the background and exposes the derived
// concurrency budget. Create with New, then Start/Stop around the work that
// should be throttled.
type Monitor struct {
	opts    Options
	cores   int
	sampler Sampler
	log     *logging.Logger

	mu       sync.RWMutex
	budget   Budget
	degraded bool
	started  bool

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New creates a Monitor. It never fails: when the platform sampler is
// unavailable the monitor starts in degraded mode.
func New(opts Options) *Monitor {
	if opts.CPULimit <= 0 || opts.CPULimit > 1 {
		opts.CPULimit = DefaultCPULimit
	}
	if opts.MemoryLimit <= 0 || opts.MemoryLimit > 1 {
		opts.MemoryLimit = DefaultMemoryLimit
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	m := &Monitor{
		opts:  opts,
		cores: runtime.NumCPU(),
		log:   logging.Get("monitor"),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	m.sampler = opts.Sampler
	if m.sampler == nil {
		sampler, err := newPlatformSampler()
		if err != nil {
			m.log.Warn("resource sampling unavailable, using static budget",
				"error", err)
			m.degraded = true
		} else {
			m.sampler = sampler
		}
	}

	// Static budget until the first tick lands (and permanently when
	// degraded).
	m.budget = m.staticBudget()

	return m
}

// staticBudget is the fallback concurrency budget: cores × cpu_limit,
// floored at one thread, with throttling disabled.
func (m *Monitor) staticBudget() Budget {
	threads := int(float64(m.cores) * m.opts.CPULimit)
	if threads < 1 {
		threads = 1
	}
	return Budget{
		MaxThreads: threads,
		Degraded:   m.degraded,
		SampledAt:  time.Now(),
	}
}

// Start launches the background sampler. It returns immediately; sampling
// continues until Stop is called or ctx is cancelled. Starting a degraded
// monitor is a no-op beyond the static budget already in place. Subsequent
// calls to Start do nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.started = true
		m.mu.Unlock()

		if m.degraded {
			close(m.done)
			return
		}

		go func() {
			defer close(m.done)

			// Prime the sampler so the first interval tick has a
			// delta to work against.
			m.sampleOnce()

			ticker := time.NewTicker(m.opts.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-m.stop:
					return
				case <-ticker.C:
					m.sampleOnce()
				}
			}
		}()
	})
}

// Stop terminates the background sampler and waits for it to exit.
// It is safe to call multiple times, and before Start.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.RLock()
	started := m.started
	m.mu.RUnlock()
	if started {
		<-m.done
	}
}

// sampleOnce takes one sample and recomputes the budget.
func (m *Monitor) sampleOnce() {
	usage, err := m.sampler.Sample()
	if err != nil {
		// Keep the previous budget; a single failed sample is not a
		// reason to degrade permanently.
		m.log.Warn("resource sample failed", "error", err)
		return
	}
	m.recompute(usage)
}

// recompute derives the budget from one usage sample. The thread count
// estimates how much more CPU this process could legitimately consume
// before breaching the ceiling, attributing the process's own usage back
// to its budget: cores × clamp(limit − (system − process), 0.1, 1.0).
func (m *Monitor) recompute(u Usage) {
	avail := m.opts.CPULimit - (u.SystemCPU - u.ProcessCPU)
	avail = clamp(avail, 0.1, 1.0)

	threads := int(float64(m.cores) * avail)
	if threads < 1 {
		threads = 1
	}

	m.mu.Lock()
	m.budget = Budget{
		SystemCPU:  u.SystemCPU,
		ProcessCPU: u.ProcessCPU,
		MemoryUsed: u.MemoryUsed,
		MaxThreads: threads,
		SampledAt:  time.Now(),
	}
	m.mu.Unlock()

	m.log.Debug("budget recomputed",
		"system_cpu", u.SystemCPU,
		"process_cpu", u.ProcessCPU,
		"memory_used", u.MemoryUsed,
		"max_threads", threads)
}

// MaxThreads returns the current concurrency budget, always ≥ 1.
func (m *Monitor) MaxThreads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.budget.MaxThreads
}

// ShouldThrottle reports whether new work submission should pause because
// sampled memory usage exceeds the configured limit. A degraded monitor
// never throttles.
func (m *Monitor) ShouldThrottle() bool {
	if m.degraded {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.budget.MemoryUsed > m.opts.MemoryLimit
}

// WaitForResources blocks until ShouldThrottle clears, the timeout elapses,
// or ctx is cancelled. It returns true when resources freed up within the
// timeout and false otherwise. Callers may proceed regardless: the throttle
// is a soft ceiling, and this bounded wait exists to avoid starvation.
func (m *Monitor) WaitForResources(ctx context.Context, timeout time.Duration) bool {
	if !m.ShouldThrottle() {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(waitPoll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-poll.C:
			if !m.ShouldThrottle() {
				return true
			}
		}
	}
}

// Snapshot returns the current budget.
func (m *Monitor) Snapshot() Budget {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.budget
}

// Degraded reports whether the monitor is running without a sampler.
func (m *Monitor) Degraded() bool {
	return m.degraded
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
