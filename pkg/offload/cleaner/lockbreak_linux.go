//go:build linux

package cleaner

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procBreaker finds lock holders by walking /proc: a process holds a path
// when one of its file descriptors, its working directory, or its
// executable resolves into it.
type procBreaker struct{}

func newPlatformBreaker() (LockBreaker, error) {
	return procBreaker{}, nil
}

func (procBreaker) Holders(ctx context.Context, path string) ([]Process, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	prefix := filepath.Clean(path)
	self := os.Getpid()

	var procs []Process
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}
		if holdsPath(pid, prefix) {
			procs = append(procs, Process{PID: pid, Name: procName(pid)})
		}
	}
	return procs, nil
}

func (procBreaker) Kill(p Process) error {
	return killProcess(p)
}

// holdsPath reports whether pid has prefix open, either as its working
// directory, as its executable, or through any file descriptor. Entries we
// cannot read (other users' processes) are skipped.
func holdsPath(pid int, prefix string) bool {
	base := filepath.Join("/proc", strconv.Itoa(pid))
	for _, link := range []string{filepath.Join(base, "cwd"), filepath.Join(base, "exe")} {
		if target, err := os.Readlink(link); err == nil && underPath(target, prefix) {
			return true
		}
	}
	fds, err := os.ReadDir(filepath.Join(base, "fd"))
	if err != nil {
		return false
	}
	for _, fd := range fds {
		target, err := os.Readlink(filepath.Join(base, "fd", fd.Name()))
		if err == nil && underPath(target, prefix) {
			return true
		}
	}
	return false
}

func underPath(target, prefix string) bool {
	return target == prefix || strings.HasPrefix(target, prefix+"/")
}

func procName(pid int) string {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "comm"))
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(data))
}
