//go:build !linux && !darwin

package migrator

import (
	"fmt"
	"runtime"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

// freeSpace reports the free-space query as unavailable on this platform.
// The migrator warns and proceeds without the space precondition.
func freeSpace(path string) (int64, error) {
	return 0, fmt.Errorf("%w: no free-space query for %s", types.ErrUnavailable, runtime.GOOS)
}
