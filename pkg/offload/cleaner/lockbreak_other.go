//go:build !linux && !darwin

package cleaner

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

func newPlatformBreaker() (LockBreaker, error) {
	return nil, fmt.Errorf("%w: no lock-holder enumeration on %s", types.ErrUnavailable, runtime.GOOS)
}

func isLocked(err error) bool {
	return errors.Is(err, os.ErrPermission)
}
