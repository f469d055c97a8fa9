// Package cleaner removes migrated sources once their destination copy is
// confirmed to exist. Entries are processed one at a time: deletes are
// cheap next to the transfer stage, and sorted sequential order makes
// nested entries behave predictably (a parent directory removed first
// turns its children into skips).
package cleaner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/logging"
	"github.com/jamesainslie/offload/pkg/offload/mapping"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// handleReleaseWait gives the kernel a moment to reap killed holders and
// release their handles before the follow-up delete.
var handleReleaseWait = 1 * time.Second

// Result summarizes a clean run.
type Result struct {
	// Cleaned counts sources removed.
	Cleaned int `json:"cleaned"`

	// Skipped counts sources that were already gone.
	Skipped int `json:"skipped"`

	// Failed lists sources that could not or must not be removed.
	Failed []types.Failure `json:"failed,omitempty"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`
}

// OK reports whether every entry was removed or safely skipped.
func (r *Result) OK() bool {
	return len(r.Failed) == 0
}

// Cleaner deletes migrated sources. A Cleaner is single-use.
type Cleaner struct {
	opts    Options
	log     *logging.Logger
	breaker LockBreaker
	prog    *types.Progress
	res     *Result
}

// New validates opts and resolves the lock breaker. When forced unlocking
// is requested but the platform cannot enumerate holders, the run proceeds
// with plain timed retries.
func New(opts Options) (*Cleaner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Cleaner{
		opts:    opts,
		log:     logging.Get("cleaner"),
		breaker: opts.Breaker,
		res:     &Result{},
	}
	if c.breaker == nil && opts.ForceUnlock {
		b, err := newPlatformBreaker()
		if err != nil {
			c.log.Warn("forced unlocking unavailable, falling back to timed retries", "error", err)
			c.opts.ForceUnlock = false
		} else {
			c.breaker = b
		}
	}
	return c, nil
}

// Clean removes every mapped source whose destination still exists. A
// missing source is counted as already cleaned; a missing destination
// keeps the source untouched and marks the entry failed. Per-entry
// failures never abort the run; only ctx cancellation does.
func (c *Cleaner) Clean(ctx context.Context) (*Result, error) {
	start := time.Now()
	entries := c.opts.Mapping.Entries()
	if len(entries) == 0 {
		c.say("nothing to clean")
		c.res.Duration = time.Since(start)
		return c.res, nil
	}

	c.say("cleaning %d migrated sources", len(entries))
	c.prog = types.NewProgress(len(entries), 0, c.opts.OnProgress)
	c.prog.Force(0)

	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		c.cleanOne(ctx, e)
		c.prog.Bump()
	}
	c.res.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		c.say("clean cancelled")
		return c.res, err
	}

	c.prog.Force(100)
	if c.res.OK() {
		c.say("clean complete: %d sources removed, %d already gone", c.res.Cleaned, c.res.Skipped)
	} else {
		c.say("clean finished with errors: %d removed, %d failed", c.res.Cleaned, len(c.res.Failed))
		for _, f := range c.res.Failed {
			c.say("could not remove %s: %s", f.Path, f.Reason)
		}
	}
	return c.res, nil
}

func (c *Cleaner) cleanOne(ctx context.Context, e mapping.Entry) {
	info, err := os.Lstat(e.Source)
	if os.IsNotExist(err) {
		c.say("source already gone, skipping: %s", e.Source)
		c.res.Skipped++
		return
	}
	if err != nil {
		c.fail(e.Source, err)
		return
	}

	// The mapped copy is the only other copy of this data. If it cannot
	// be seen, the source must not be touched.
	if _, err := os.Stat(e.Dest); err != nil {
		c.log.Error("destination not verifiable, keeping source", "source", e.Source, "dest", e.Dest, "error", err)
		c.fail(e.Source, fmt.Errorf("destination missing: %s", e.Dest))
		return
	}

	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	c.say("removing %s %s", kind, e.Source)

	if err := c.removeWithRetry(ctx, e.Source); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.fail(e.Source, err)
		return
	}
	c.res.Cleaned++
	c.say("removed %s", e.Source)
}

// removeWithRetry attempts the delete up to Retries times. A lock-like
// failure with ForceUnlock set triggers holder termination and an
// immediate follow-up attempt before the timed pause.
func (c *Cleaner) removeWithRetry(ctx context.Context, path string) error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = os.RemoveAll(path)
		if lastErr == nil {
			return nil
		}
		c.log.Warn("delete attempt failed", "path", path, "attempt", attempt, "error", lastErr)

		if c.opts.ForceUnlock && isLocked(lastErr) {
			c.say("%s is in use, terminating the processes holding it", path)
			if c.killHolders(ctx, path) {
				if lastErr = os.RemoveAll(path); lastErr == nil {
					return nil
				}
				c.log.Warn("delete still failing after killing holders", "path", path, "error", lastErr)
			}
		}

		if attempt < c.opts.Retries {
			c.say("retrying in %s", c.opts.RetryInterval)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.RetryInterval):
			}
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", c.opts.Retries, lastErr)
}

// killHolders terminates every process found holding path and reports
// whether at least one was signalled, meaning an immediate retry is worth
// making.
func (c *Cleaner) killHolders(ctx context.Context, path string) bool {
	procs, err := c.breaker.Holders(ctx, path)
	if err != nil {
		c.log.Warn("cannot enumerate processes holding path", "path", path, "error", err)
		return false
	}
	if len(procs) == 0 {
		c.say("no process found holding %s", path)
		return false
	}
	killed := 0
	for _, p := range procs {
		c.say("terminating %s (pid %d)", p.Name, p.PID)
		if err := c.breaker.Kill(p); err != nil {
			c.log.Warn("failed to kill holder", "pid", p.PID, "name", p.Name, "error", err)
			continue
		}
		killed++
	}
	if killed == 0 {
		return false
	}
	select {
	case <-ctx.Done():
	case <-time.After(handleReleaseWait):
	}
	return true
}

func (c *Cleaner) fail(path string, err error) {
	c.res.Failed = append(c.res.Failed, types.Failure{Path: path, Reason: err.Error()})
}

func (c *Cleaner) say(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.log.Info(msg)
	c.opts.OnMessage.Emit(msg)
}
