//go:build darwin

package cleaner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

// lsofTimeout bounds the lsof invocation; scanning a large directory tree
// for open files can take a while.
const lsofTimeout = 30 * time.Second

// lsofBreaker shells out to lsof, the only stock way to map open files
// back to processes on macOS.
type lsofBreaker struct{}

func newPlatformBreaker() (LockBreaker, error) {
	if _, err := exec.LookPath("lsof"); err != nil {
		return nil, fmt.Errorf("%w: lsof not found in PATH", types.ErrUnavailable)
	}
	return lsofBreaker{}, nil
}

func (lsofBreaker) Holders(ctx context.Context, path string) ([]Process, error) {
	ctx, cancel := context.WithTimeout(ctx, lsofTimeout)
	defer cancel()

	args := []string{"-F", "pc"}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		args = append(args, "+D", path)
	} else {
		args = append(args, "--", path)
	}
	out, err := exec.CommandContext(ctx, "lsof", args...).Output()
	if err != nil {
		// lsof exits 1 when nothing holds the path.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && len(out) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("lsof %s: %w", path, err)
	}
	return parseLsof(out, os.Getpid()), nil
}

func (lsofBreaker) Kill(p Process) error {
	return killProcess(p)
}

// parseLsof reads lsof -F pc output, a p<pid> line followed by a
// c<command> line per process, and drops the calling process.
func parseLsof(out []byte, self int) []Process {
	var procs []Process
	var cur Process
	flush := func() {
		if cur.PID != 0 && cur.PID != self {
			procs = append(procs, cur)
		}
	}
	for _, line := range strings.Split(string(out), "\n") {
		if len(line) < 2 {
			continue
		}
		switch line[0] {
		case 'p':
			flush()
			pid, err := strconv.Atoi(line[1:])
			if err != nil {
				pid = 0
			}
			cur = Process{PID: pid}
		case 'c':
			cur.Name = line[1:]
		}
	}
	flush()
	return procs
}
