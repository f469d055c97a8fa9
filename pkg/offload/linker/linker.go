// Package linker puts symlinks at cleaned source paths pointing to their
// migrated destinations, so software keeps finding its data at the old
// location. Creation is cheap; the work is confirming that the filesystem
// actually reports the new path as a link before declaring success.
package linker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/logging"
	"github.com/jamesainslie/offload/pkg/offload/mapping"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// linkPollInterval is the pause between verification probes.
var linkPollInterval = 500 * time.Millisecond

// Result summarizes a link run.
type Result struct {
	// Linked counts symlinks created and confirmed.
	Linked int `json:"linked"`

	// Skipped counts sources that still exist, including ones already
	// linked by an earlier run.
	Skipped int `json:"skipped"`

	// Failed lists entries whose link could not be created or confirmed.
	Failed []types.Failure `json:"failed,omitempty"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`
}

// OK reports whether every entry was linked or safely skipped.
func (r *Result) OK() bool {
	return len(r.Failed) == 0
}

// Linker creates and verifies symlinks. A Linker is single-use.
type Linker struct {
	opts Options
	log  *logging.Logger
	fs   FS
	prog *types.Progress
	res  *Result
}

// New validates opts and builds a Linker.
func New(opts Options) (*Linker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Linker{
		opts: opts,
		log:  logging.Get("linker"),
		fs:   opts.FS,
		res:  &Result{},
	}, nil
}

// CreateLinks links every mapped source to its destination. It refuses to
// run without elevated privileges, before touching any path. Per-entry
// failures never abort the run; only ctx cancellation does.
func (l *Linker) CreateLinks(ctx context.Context) (*Result, error) {
	if !l.opts.Elevated {
		l.say("creating symlinks requires elevated privileges, re-run as an administrator")
		return nil, types.ErrPrivilegeRequired
	}

	start := time.Now()
	entries := l.opts.Mapping.Entries()
	if len(entries) == 0 {
		l.say("no paths need linking")
		l.res.Duration = time.Since(start)
		return l.res, nil
	}

	l.say("creating %d symlinks", len(entries))
	l.prog = types.NewProgress(len(entries), 0, l.opts.OnProgress)
	l.prog.Force(0)

	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		l.linkOne(ctx, e)
		l.prog.Bump()
	}
	l.res.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		l.say("link creation cancelled")
		return l.res, err
	}

	l.prog.Force(100)
	if l.res.OK() {
		l.say("link creation complete: %d linked, %d skipped", l.res.Linked, l.res.Skipped)
	} else {
		l.say("link creation finished with errors: %d linked, %d failed", l.res.Linked, len(l.res.Failed))
		for _, f := range l.res.Failed {
			l.say("could not link %s: %s", f.Path, f.Reason)
		}
	}
	return l.res, nil
}

func (l *Linker) linkOne(ctx context.Context, e mapping.Entry) {
	if info, err := l.fs.Lstat(e.Source); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			l.say("source still exists, skipping %s", e.Source)
			l.res.Skipped++
			return
		}
		if _, err := l.fs.Stat(e.Source); err == nil {
			l.say("already linked, skipping %s", e.Source)
			l.res.Skipped++
			return
		}
		// A dangling link is a leftover from an interrupted run. Replace
		// it rather than reporting the source as present.
		l.say("replacing dangling link at %s", e.Source)
		if err := l.fs.Remove(e.Source); err != nil {
			l.fail(e.Source, fmt.Errorf("remove dangling link: %w", err))
			return
		}
	}

	if _, err := l.fs.Stat(e.Dest); err != nil {
		l.log.Error("destination missing, nothing to link to", "source", e.Source, "dest", e.Dest, "error", err)
		l.fail(e.Source, fmt.Errorf("destination missing: %s", e.Dest))
		return
	}

	l.say("linking %s -> %s", e.Source, e.Dest)
	if err := l.fs.Symlink(e.Dest, e.Source); err != nil {
		l.fail(e.Source, err)
		return
	}

	if err := l.verifyLink(ctx, e.Source); err != nil {
		if ctx.Err() != nil {
			return
		}
		l.fail(e.Source, err)
		return
	}
	l.res.Linked++
	l.say("link confirmed %s -> %s", e.Source, e.Dest)
}

// verifyLink polls until the filesystem reports source as a symlink that
// resolves. Creation returning success does not guarantee the metadata is
// visible yet, so confirmation is sampled rather than assumed.
func (l *Linker) verifyLink(ctx context.Context, source string) error {
	deadline := time.Now().Add(l.opts.CheckTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if info, err := l.fs.Lstat(source); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if _, err := l.fs.Stat(source); err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("link not confirmed within %s", l.opts.CheckTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(linkPollInterval):
		}
	}
}

func (l *Linker) fail(path string, err error) {
	l.res.Failed = append(l.res.Failed, types.Failure{Path: path, Reason: err.Error()})
}

func (l *Linker) say(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.log.Info(msg)
	l.opts.OnMessage.Emit(msg)
}
