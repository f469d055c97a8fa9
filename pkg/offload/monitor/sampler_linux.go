//go:build linux

package monitor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

// procSampler reads CPU and memory usage from the /proc filesystem.
// CPU fractions are computed from jiffy deltas between consecutive samples,
// so the first sample reports zero CPU; the monitor primes the sampler
// before its first real tick.
type procSampler struct {
	mu        sync.Mutex
	prevTotal uint64
	prevIdle  uint64
	prevProc  uint64
	primed    bool
}

// newPlatformSampler returns the /proc-backed sampler, verifying that the
// filesystem is actually readable first.
func newPlatformSampler() (Sampler, error) {
	if _, err := os.Stat("/proc/stat"); err != nil {
		return nil, fmt.Errorf("%w: /proc/stat: %v", types.ErrUnavailable, err)
	}
	return &procSampler{}, nil
}

// Sample reads current counters and converts deltas into usage fractions.
func (s *procSampler) Sample() (Usage, error) {
	total, idle, err := readCPUTotals()
	if err != nil {
		return Usage{}, err
	}
	proc, err := readProcessTicks()
	if err != nil {
		return Usage{}, err
	}
	memUsed, err := readMemoryUsage()
	if err != nil {
		return Usage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := Usage{MemoryUsed: memUsed}
	if s.primed && total > s.prevTotal {
		dTotal := float64(total - s.prevTotal)
		dIdle := float64(idle - s.prevIdle)
		dProc := float64(proc - s.prevProc)
		u.SystemCPU = clamp(1-dIdle/dTotal, 0, 1)
		u.ProcessCPU = clamp(dProc/dTotal, 0, 1)
	}
	s.prevTotal, s.prevIdle, s.prevProc = total, idle, proc
	s.primed = true

	return u, nil
}

// readCPUTotals parses the aggregate "cpu" line of /proc/stat and returns
// (total, idle) jiffies summed over all cores. Idle includes iowait.
func readCPUTotals() (total, idle uint64, err error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, 0, fmt.Errorf("reading /proc/stat: %w", err)
	}

	line, _, _ := strings.Cut(string(data), "\n")
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, fmt.Errorf("unexpected /proc/stat format: %q", line)
	}

	// user nice system idle iowait irq softirq steal
	for i, f := range fields[1:] {
		if i >= 8 {
			break
		}
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing /proc/stat field %d: %w", i+1, err)
		}
		total += v
		if i == 3 || i == 4 { // idle, iowait
			idle += v
		}
	}
	return total, idle, nil
}

// readProcessTicks returns this process's utime+stime jiffies from
// /proc/self/stat. The comm field may contain spaces, so parsing starts
// after the final closing parenthesis.
func readProcessTicks() (uint64, error) {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0, fmt.Errorf("reading /proc/self/stat: %w", err)
	}

	s := string(data)
	i := strings.LastIndexByte(s, ')')
	if i < 0 || i+2 > len(s) {
		return 0, fmt.Errorf("unexpected /proc/self/stat format")
	}

	// After ")": state=0, ..., utime=11, stime=12
	fields := strings.Fields(s[i+2:])
	if len(fields) < 13 {
		return 0, fmt.Errorf("unexpected /proc/self/stat field count: %d", len(fields))
	}

	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing utime: %w", err)
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing stime: %w", err)
	}
	return utime + stime, nil
}

// readMemoryUsage derives the used-memory fraction from /proc/meminfo
// using MemAvailable, which accounts for reclaimable caches.
func readMemoryUsage() (float64, error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, fmt.Errorf("reading /proc/meminfo: %w", err)
	}

	var totalKB, availKB uint64
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB, err = strconv.ParseUint(fields[1], 10, 64)
		case "MemAvailable:":
			availKB, err = strconv.ParseUint(fields[1], 10, 64)
		}
		if err != nil {
			return 0, fmt.Errorf("parsing /proc/meminfo: %w", err)
		}
	}

	if totalKB == 0 || availKB == 0 {
		return 0, fmt.Errorf("missing MemTotal/MemAvailable in /proc/meminfo")
	}
	return clamp(1-float64(availKB)/float64(totalKB), 0, 1), nil
}
