package monitor

// Usage is one resource usage sample. CPU values are fractions of total
// machine capacity so the budget subtraction stays dimensionally consistent.
type Usage struct {
	// SystemCPU is whole-system CPU usage in [0, 1].
	SystemCPU float64

	// ProcessCPU is this process's CPU usage in [0, 1] of total capacity.
	ProcessCPU float64

	// MemoryUsed is the system memory usage fraction in [0, 1].
	MemoryUsed float64
}

// Sampler measures resource usage. Implementations must be safe for use
// from the monitor's sampling goroutine; Sample is never called
// concurrently by the monitor itself.
type Sampler interface {
	Sample() (Usage, error)
}
