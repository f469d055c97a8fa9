package scanner

import (
	"errors"
	"runtime"

	"github.com/jamesainslie/offload/pkg/offload/cache"
	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// Options configures a scan.
type Options struct {
	// Roots are the directories to scan, each with its own depth bound
	// and exclusions.
	Roots []config.Root

	// MinSize is the candidate threshold in bytes. Files and directories
	// at or above it become scan entries.
	MinSize int64

	// Exclude lists directory names pruned from every root, merged with
	// each root's own exclusions.
	Exclude []string

	// Workers bounds the pool scanning roots in parallel. Zero selects
	// DefaultWorkers.
	Workers int

	// Cache is an optional directory-size cache for speeding up repeat
	// scans. Nil disables caching.
	Cache *cache.Cache

	// OnMessage receives human-readable progress messages.
	OnMessage types.MessageFunc

	// OnProgress receives the scan completion percentage.
	OnProgress types.ProgressFunc
}

// ErrNoRoots is returned when a scan is configured without any roots.
var ErrNoRoots = errors.New("no scan roots configured")

// DefaultWorkers returns the worker count used when none is configured:
// twice the core count, but at least four, since the scan is I/O bound.
func DefaultWorkers() int {
	if n := runtime.NumCPU() * 2; n > 4 {
		return n
	}
	return 4
}

// Validate checks the options and applies defaults for unset values.
func (o *Options) Validate() error {
	if len(o.Roots) == 0 {
		return ErrNoRoots
	}
	if o.MinSize <= 0 {
		size, err := types.ParseSize(config.DefaultMinSize)
		if err != nil {
			return err
		}
		o.MinSize = size
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers()
	}
	for i := range o.Roots {
		if o.Roots[i].MaxDepth < 0 {
			o.Roots[i].MaxDepth = 0
		}
	}
	return nil
}
