package linker

import (
	"time"

	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/jamesainslie/offload/pkg/offload/mapping"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// Options configures a link run.
type Options struct {
	// Mapping holds the source-to-destination pairs to link.
	Mapping *mapping.Mapping

	// Elevated reports whether the process runs with the privileges
	// symlink creation needs. The caller computes it; the linker only
	// enforces it.
	Elevated bool

	// CheckTimeout bounds the per-link verification poll.
	CheckTimeout time.Duration

	// FS overrides the filesystem implementation. Nil selects the
	// os-backed default.
	FS FS

	// OnMessage receives human-readable progress messages.
	OnMessage types.MessageFunc

	// OnProgress receives completion percentages.
	OnProgress types.ProgressFunc
}

// Validate fills defaults and rejects unusable combinations.
func (o *Options) Validate() error {
	if o.Mapping == nil {
		return types.ErrNoMapping
	}
	if o.CheckTimeout <= 0 {
		o.CheckTimeout = config.DefaultCheckTimeout
	}
	if o.FS == nil {
		o.FS = osFS{}
	}
	return nil
}
