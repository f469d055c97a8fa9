// Package migrator implements the second pipeline stage: it transfers each
// scan candidate to the destination volume, preserving the path the
// candidate had relative to its own volume root, and records every verified
// transfer in the path mapping artifact.
//
// Directory candidates travel through a staged tar.gz archive that is
// extracted at the destination and then discarded. File candidates above a
// size threshold are chunk-copied with rate and remaining-time reporting;
// smaller files are copied in one pass. Candidates run concurrently, and
// submission of new work pauses while the resource monitor reports
// pressure. Individual candidate failures are collected in the Result; only
// preconditions such as insufficient destination space fail the stage.
package migrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/offload/pkg/offload/logging"
	"github.com/jamesainslie/offload/pkg/offload/mapping"
	"github.com/jamesainslie/offload/pkg/offload/monitor"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// Space precondition: archives are assumed to compress to 70% of the source
// size, padded by a 20% safety margin.
const (
	assumedCompression = 0.7
	spaceSafetyMargin  = 1.2
)

// Message throttling inside per-candidate loops.
const (
	archiveMsgInterval = 500 * time.Millisecond
	copyMsgInterval    = time.Second
)

// throttler is the slice of the resource monitor the migrator uses.
type throttler interface {
	Start(ctx context.Context)
	Stop()
	MaxThreads() int
	ShouldThrottle() bool
	WaitForResources(ctx context.Context, timeout time.Duration) bool
}

// Result summarizes one migration run.
type Result struct {
	// Migrated counts candidates with verified transfers.
	Migrated int

	// Skipped counts candidates whose source no longer exists.
	Skipped int

	// Failed lists candidates that could not be transferred.
	Failed []types.Failure

	// Bytes is the total size of migrated candidates.
	Bytes int64

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// OK reports whether every present candidate was migrated.
func (r *Result) OK() bool {
	return len(r.Failed) == 0
}

// Migrator transfers scan candidates to the destination volume.
// A Migrator is single-use: create a new one for each run.
type Migrator struct {
	opts Options
	log  *logging.Logger
	mon  throttler
	prog *types.Progress

	mu  sync.Mutex
	res *Result
}

// New creates a Migrator. Options are validated and defaults applied.
func New(opts Options) (*Migrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m := &Migrator{
		opts: opts,
		log:  logging.Get("migrator"),
		res:  &Result{},
	}
	if opts.Monitor != nil {
		m.mon = opts.Monitor
	} else {
		m.mon = monitor.New(monitor.Options{
			CPULimit:    opts.CPULimit,
			MemoryLimit: opts.MemoryLimit,
		})
	}
	return m, nil
}

// Migrate transfers every candidate in the scan report and persists the
// path mapping. The mapping is persisted even when the run is cancelled or
// some candidates fail; it is the recovery record for the later stages. A
// failed space precondition returns types.ErrInsufficientSpace and writes
// nothing.
func (m *Migrator) Migrate(ctx context.Context) (*mapping.Mapping, *Result, error) {
	start := time.Now()

	entries := m.opts.Report.Entries()
	if len(entries) == 0 {
		m.say("no migration candidates in scan report")
		m.res.Duration = time.Since(start)
		return mapping.New(), m.res, nil
	}

	for _, dir := range []string{m.opts.Target, m.opts.Staging, filepath.Dir(m.opts.MappingPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := m.checkSpace(m.opts.Report.TotalSize()); err != nil {
		return nil, nil, err
	}

	m.mon.Start(ctx)
	defer m.mon.Stop()
	m.say("resource monitor started (cpu limit %.0f%%, memory limit %.0f%%)",
		m.opts.CPULimit*100, m.opts.MemoryLimit*100)

	workers := m.opts.Workers
	if workers == 0 {
		workers = m.mon.MaxThreads()
	}
	m.say("migrating %d directories and %d files with %d workers",
		len(m.opts.Report.LargeDirectories), len(m.opts.Report.LargeFiles), workers)

	m.prog = types.NewProgress(len(entries), 0, m.opts.OnProgress)
	m.prog.Force(0)

	mp := mapping.New()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, e := range entries {
		if gctx.Err() != nil {
			break
		}
		for m.mon.ShouldThrottle() {
			m.say("resource pressure high, pausing submissions...")
			if !m.mon.WaitForResources(gctx, m.opts.ThrottleWait) {
				break
			}
		}
		g.Go(func() error { return m.migrateOne(gctx, mp, e) })
	}
	err := g.Wait()
	if err == nil {
		// Cancellation between submissions leaves no worker error behind.
		err = ctx.Err()
	}
	m.res.Duration = time.Since(start)

	if err != nil {
		m.say("migration cancelled")
		if mp.Len() > 0 {
			if saveErr := mp.Save(m.opts.MappingPath); saveErr != nil {
				m.log.Error("failed to save mapping after cancellation", "error", saveErr)
			} else {
				m.say("path mapping saved: %d entries -> %s", mp.Len(), m.opts.MappingPath)
			}
		}
		return mp, m.res, err
	}

	if err := mp.Save(m.opts.MappingPath); err != nil {
		return mp, m.res, fmt.Errorf("failed to save path mapping: %w", err)
	}
	m.say("path mapping saved: %d entries -> %s", mp.Len(), m.opts.MappingPath)
	m.prog.Force(100)
	m.say("migration complete: %d migrated, %d skipped, %d failed",
		m.res.Migrated, m.res.Skipped, len(m.res.Failed))
	return mp, m.res, nil
}

// checkSpace verifies the destination can hold the estimated migration. An
// unavailable free-space query degrades to a warning.
func (m *Migrator) checkSpace(total int64) error {
	free, err := freeSpace(m.opts.Target)
	if err != nil {
		m.log.Warn("cannot determine destination free space", "error", err)
		m.say("warning: unable to verify free space on %s, proceeding", m.opts.Target)
		return nil
	}
	required := int64(float64(total) * assumedCompression * spaceSafetyMargin)
	if free < required {
		m.say("insufficient space on %s: need %s, have %s",
			m.opts.Target, types.FormatSize(required), types.FormatSize(free))
		return fmt.Errorf("%w: need %s, have %s",
			types.ErrInsufficientSpace, types.FormatSize(required), types.FormatSize(free))
	}
	m.say("destination space ok: need %s, have %s",
		types.FormatSize(required), types.FormatSize(free))
	return nil
}

// migrateOne transfers a single candidate. Per-candidate errors are
// recorded in the result and do not abort the run; only cancellation
// propagates.
func (m *Migrator) migrateOne(ctx context.Context, mp *mapping.Mapping, e types.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.prog.Bump()

	var err error
	switch e.Kind {
	case types.KindDirectory:
		err = m.migrateDir(ctx, mp, e)
	case types.KindFile:
		err = m.migrateFile(ctx, mp, e)
	default:
		err = fmt.Errorf("unknown candidate kind %q", e.Kind)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.log.Error("migration failed", "path", e.Path, "error", err)
	m.say("failed to migrate %s: %v", e.Path, err)
	m.addFailure(e.Path, err)
	return nil
}

// migrateDir archives the directory into staging, extracts the archive at
// the destination, verifies the file count, and removes the archive.
func (m *Migrator) migrateDir(ctx context.Context, mp *mapping.Mapping, e types.Entry) error {
	info, err := os.Stat(e.Path)
	if os.IsNotExist(err) {
		m.skip(e.Path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source is not a directory")
	}

	dest := m.destFor(e.Path)
	archivePath := filepath.Join(m.opts.Staging,
		fmt.Sprintf("%s-%s.tar.gz", filepath.Base(e.Path), uuid.NewString()))

	m.say("archiving %s (%s)", e.Path, e.SizeHuman)
	files, err := m.archiveDir(ctx, e.Path, archivePath)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	m.say("extracting %d files into %s", files, dest)
	extracted, err := m.extractArchive(ctx, archivePath, dest)
	if err != nil {
		os.Remove(archivePath)
		return fmt.Errorf("extract: %w", err)
	}
	if extracted != files {
		os.Remove(archivePath)
		return fmt.Errorf("extracted %d of %d files", extracted, files)
	}

	if err := os.Remove(archivePath); err != nil {
		m.log.Warn("failed to remove staging archive", "path", archivePath, "error", err)
	}

	if err := mp.Add(e.Path, dest); err != nil {
		return err
	}
	m.finish(e)
	m.say("migrated %s -> %s", e.Path, dest)
	return nil
}

// migrateFile copies the file to the destination, chunked with progress
// above the threshold, and verifies the byte count.
func (m *Migrator) migrateFile(ctx context.Context, mp *mapping.Mapping, e types.Entry) error {
	info, err := os.Stat(e.Path)
	if os.IsNotExist(err) {
		m.skip(e.Path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("source is a directory, expected a file")
	}

	dest := m.destFor(e.Path)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	m.say("copying %s -> %s (%s)", e.Path, dest, types.FormatSize(info.Size()))
	var written int64
	if info.Size() > m.opts.ChunkThreshold {
		written, err = m.copyChunked(ctx, e.Path, dest, info)
	} else {
		written, err = copyBulk(e.Path, dest, info)
	}
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if written != info.Size() {
		return fmt.Errorf("short copy: wrote %s of %s",
			types.FormatSize(written), types.FormatSize(info.Size()))
	}

	if err := mp.Add(e.Path, dest); err != nil {
		return err
	}
	m.finish(e)
	m.say("migrated %s -> %s", e.Path, dest)
	return nil
}

// destFor maps a source path onto the target volume, keeping the shape it
// had relative to its own volume root.
func (m *Migrator) destFor(source string) string {
	return filepath.Join(m.opts.Target, relativeToVolume(source))
}

// relativeToVolume strips the volume prefix: the drive on Windows, the
// leading separator elsewhere.
func relativeToVolume(path string) string {
	rel := path[len(filepath.VolumeName(path)):]
	return strings.TrimPrefix(rel, string(filepath.Separator))
}

func (m *Migrator) skip(path string) {
	m.mu.Lock()
	m.res.Skipped++
	m.mu.Unlock()
	m.say("source missing, skipping: %s", path)
}

func (m *Migrator) finish(e types.Entry) {
	m.mu.Lock()
	m.res.Migrated++
	m.res.Bytes += e.Size
	m.mu.Unlock()
}

func (m *Migrator) addFailure(path string, err error) {
	m.mu.Lock()
	m.res.Failed = append(m.res.Failed, types.Failure{Path: path, Reason: err.Error()})
	m.mu.Unlock()
}

// say logs the message and forwards it to the message sink.
func (m *Migrator) say(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	m.log.Info(msg)
	m.opts.OnMessage.Emit(msg)
}

// msgTicker rate-limits progress messages inside per-candidate loops. Each
// loop owns its ticker, so no locking.
type msgTicker struct {
	interval time.Duration
	last     time.Time
}

func newMsgTicker(interval time.Duration) *msgTicker {
	return &msgTicker{interval: interval, last: time.Now()}
}

func (t *msgTicker) ready() bool {
	if time.Since(t.last) < t.interval {
		return false
	}
	t.last = time.Now()
	return true
}
