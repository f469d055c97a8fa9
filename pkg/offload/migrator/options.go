package migrator

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/jamesainslie/offload/pkg/offload/monitor"
	"github.com/jamesainslie/offload/pkg/offload/scanner"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// DefaultThrottleWait bounds how long submission pauses when the resource
// monitor reports pressure. After the wait the next candidate is submitted
// regardless, so throttling slows the pipeline but never starves it.
const DefaultThrottleWait = 5 * time.Second

// Options configures a migration.
type Options struct {
	// Report is the scan report listing the migration candidates.
	Report *scanner.Report

	// Target is the destination volume root. Each candidate lands under
	// it at the path it had relative to its own volume root.
	Target string

	// Staging is the directory holding transient archives while
	// directory candidates are in flight. Empty selects
	// <Target>/.offload-staging.
	Staging string

	// MappingPath is where the path mapping artifact is written.
	MappingPath string

	// Workers bounds the candidate pool. Zero defers to the resource
	// monitor's budget.
	Workers int

	// CPULimit and MemoryLimit configure the resource monitor when no
	// Monitor is supplied. Values outside (0, 1] fall back to the
	// defaults.
	CPULimit    float64
	MemoryLimit float64

	// ChunkSize is the copy buffer for large files, in bytes.
	ChunkSize int64

	// ChunkThreshold is the file size above which copies are chunked
	// with progress reporting, in bytes.
	ChunkThreshold int64

	// ThrottleWait bounds each pause when submission is throttled.
	ThrottleWait time.Duration

	// Monitor overrides the stage's resource monitor. Nil builds one
	// from CPULimit and MemoryLimit.
	Monitor *monitor.Monitor

	// OnMessage receives human-readable progress messages.
	OnMessage types.MessageFunc

	// OnProgress receives the migration completion percentage.
	OnProgress types.ProgressFunc
}

// ErrNoTarget is returned when a migration is configured without a
// destination.
var ErrNoTarget = errors.New("no migration target configured")

// ErrNoMappingPath is returned when a migration has nowhere to persist the
// path mapping.
var ErrNoMappingPath = errors.New("no mapping path configured")

// Validate checks the options and applies defaults for unset values.
func (o *Options) Validate() error {
	if o.Report == nil {
		return types.ErrNoReport
	}
	if o.Target == "" {
		return ErrNoTarget
	}
	if o.MappingPath == "" {
		return ErrNoMappingPath
	}
	if o.Staging == "" {
		o.Staging = filepath.Join(o.Target, config.DefaultStagingName)
	}
	if o.Workers < 0 {
		o.Workers = 0
	}
	if o.CPULimit <= 0 || o.CPULimit > 1 {
		o.CPULimit = monitor.DefaultCPULimit
	}
	if o.MemoryLimit <= 0 || o.MemoryLimit > 1 {
		o.MemoryLimit = monitor.DefaultMemoryLimit
	}
	if o.ChunkSize <= 0 {
		size, err := types.ParseSize(config.DefaultChunkSize)
		if err != nil {
			return err
		}
		o.ChunkSize = size
	}
	if o.ChunkThreshold <= 0 {
		size, err := types.ParseSize(config.DefaultChunkThreshold)
		if err != nil {
			return err
		}
		o.ChunkThreshold = size
	}
	if o.ThrottleWait <= 0 {
		o.ThrottleWait = DefaultThrottleWait
	}
	return nil
}
