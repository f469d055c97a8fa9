//go:build !linux

package monitor

import (
	"fmt"
	"runtime"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

// newPlatformSampler reports sampling as unavailable on this platform.
// The monitor degrades to its static budget: cores × cpu_limit, never
// throttling.
//
// TODO: Implement darwin sampling via host_statistics64; plain sysctl only
// exposes hw.memsize, which is not enough to derive a usage fraction.
func newPlatformSampler() (Sampler, error) {
	return nil, fmt.Errorf("%w: no resource sampler for %s", types.ErrUnavailable, runtime.GOOS)
}
