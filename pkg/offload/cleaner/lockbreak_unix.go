//go:build linux || darwin

package cleaner

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// isLocked reports whether a delete failure looks like a held or protected
// path rather than a permanent condition worth giving up on.
func isLocked(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY)
}

// killProcess delivers SIGKILL. The holder must release its handles
// immediately; a cooperative TERM could stall the retry loop for as long
// as the process feels like shutting down.
func killProcess(p Process) error {
	return unix.Kill(p.PID, unix.SIGKILL)
}
