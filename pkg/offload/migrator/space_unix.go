//go:build linux || darwin

package migrator

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// freeSpace reports the bytes available to unprivileged callers on the
// filesystem holding path.
func freeSpace(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
