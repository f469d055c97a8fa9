package cleaner

import (
	"time"

	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/jamesainslie/offload/pkg/offload/mapping"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// Options configures a clean run.
type Options struct {
	// Mapping holds the verified source-to-destination pairs whose
	// sources are to be removed.
	Mapping *mapping.Mapping

	// Retries is the number of delete attempts per path.
	Retries int

	// RetryInterval is the pause between delete attempts.
	RetryInterval time.Duration

	// ForceUnlock terminates processes holding a path open when a delete
	// fails with a lock-like error. Disabled automatically when the
	// platform offers no way to enumerate holders.
	ForceUnlock bool

	// Breaker overrides the platform lock breaker. Nil selects the
	// platform implementation when ForceUnlock is set.
	Breaker LockBreaker

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
	if o.Retries < 1 {
		o.Retries = config.DefaultRetries
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = config.DefaultRetryInterval
	}
	return nil
}
