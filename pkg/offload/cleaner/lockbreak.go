package cleaner

import "context"

// Process identifies a process holding a migrated source open.
type Process struct {
	PID  int
	Name string
}

// LockBreaker enumerates and terminates processes holding a path open, so
// a locked source can still be removed. It is a platform capability: Linux
// walks /proc, macOS shells out to lsof, and other platforms report
// types.ErrUnavailable at construction, which disables forced unlocking
// for the run.
type LockBreaker interface {
	// Holders returns the processes currently holding path open. The
	// calling process itself is never included.
	Holders(ctx context.Context, path string) ([]Process, error)

	// Kill forcibly terminates the process.
	Kill(p Process) error
}
