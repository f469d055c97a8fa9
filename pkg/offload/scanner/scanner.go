// Package scanner implements the first pipeline stage: a concurrent,
// depth-bounded filesystem walk that finds directories and files above a
// size threshold.
//
// Depth is measured relative to each scan root: the root itself is depth 0,
// a directory's depth is one more than its parent's, and a file carries the
// depth of the directory holding it. When a root bounds traversal at depth
// D, directories at depth D are still measured through their parent but
// never descended into. Excluded directory names are pruned entirely: no
// entries, no contribution to any ancestor's size.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/offload/pkg/offload/cache"
	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/jamesainslie/offload/pkg/offload/logging"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// progressInterval throttles progress emissions during the walk; scans
// visit directories far faster than any consumer needs updates.
const progressInterval = 10 * time.Millisecond

// Scanner walks the configured roots and collects oversized entries.
// A Scanner is single-use: create a new one for each scan.
type Scanner struct {
	opts  Options
	log   *logging.Logger
	sizer *Sizer
	prog  *types.Progress

	mu    sync.Mutex
	dirs  []types.Entry
	files []types.Entry
	errs  []types.ScanError
}

// rootScan is the per-root walk state. Each root is walked by exactly one
// goroutine, so nothing here needs locking.
type rootScan struct {
	root     config.Root
	excluded map[string]struct{}
	entries  map[string]cache.Entry
	hits     int
	misses   int
}

// New creates a Scanner. Options are validated and defaults applied.
func New(opts Options) (*Scanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{
		opts:  opts,
		log:   logging.Get("scanner"),
		sizer: NewSizer(),
	}, nil
}

// Scan walks every root and returns the filtered report. Roots are scanned
// in parallel on a bounded pool; within one root the walk is depth-first on
// a single goroutine so size aggregation stays simple.
//
// On cancellation Scan returns the partial report alongside the context
// error: entries collected before the cancellation point are preserved.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	start := time.Now()

	s.say("counting directories...")
	total := s.countDirs(ctx)
	s.prog = types.NewProgress(total, progressInterval, s.opts.OnProgress)
	s.prog.Force(0)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, root := range s.opts.Roots {
		g.Go(func() error {
			return s.scanRoot(gctx, root)
		})
	}
	err := g.Wait()

	report := s.buildReport()
	s.log.Info("scan finished",
		"elapsed", time.Since(start),
		"large_dirs", len(report.LargeDirectories),
		"large_files", len(report.LargeFiles),
		"cancelled", err != nil)

	if err != nil {
		s.say("scan cancelled")
		return report, err
	}

	s.prog.Force(100)
	s.say("scan complete: %d large directories, %d large files",
		len(report.LargeDirectories), len(report.LargeFiles))
	return report, nil
}

// countDirs walks every root counting the directories that will be
// measured, bounding the progress denominator. The pruning here mirrors
// visit exactly.
func (s *Scanner) countDirs(ctx context.Context) int {
	total := 0
	for _, root := range s.opts.Roots {
		if ctx.Err() != nil {
			break
		}
		info, err := os.Stat(root.Path)
		if err != nil || !info.IsDir() {
			continue
		}
		total++ // the root's own measurement
		total += s.countBelow(ctx, root, root.Path, 0, excludeSet(s.opts.Exclude, root.Exclude))
	}
	s.log.Debug("pre-count finished", "directories", total)
	return total
}

func (s *Scanner) countBelow(ctx context.Context, root config.Root, dir string, depth int, excluded map[string]struct{}) int {
	if ctx.Err() != nil {
		return 0
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	n := 0
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		if _, skip := excluded[de.Name()]; skip {
			continue
		}
		n++
		childDepth := depth + 1
		if root.MaxDepth == 0 || childDepth < root.MaxDepth {
			n += s.countBelow(ctx, root, filepath.Join(dir, de.Name()), childDepth, excluded)
		}
	}
	return n
}

// scanRoot measures the root itself as a depth-0 candidate and walks its
// subtree. An unreadable root is logged and skipped, not fatal.
func (s *Scanner) scanRoot(ctx context.Context, root config.Root) error {
	info, err := os.Stat(root.Path)
	if err != nil {
		s.log.Warn("skipping scan root", "path", root.Path, "error", err)
		s.say("root does not exist: %s", root.Path)
		s.addError(root.Path, err)
		return nil
	}
	if !info.IsDir() {
		s.log.Warn("scan root is not a directory", "path", root.Path)
		s.say("root is not a directory: %s", root.Path)
		return nil
	}

	if root.MaxDepth > 0 {
		s.say("scanning %s (max depth %d)", root.Path, root.MaxDepth)
	} else {
		s.say("scanning %s (unbounded depth)", root.Path)
	}

	st := &rootScan{
		root:     root,
		excluded: excludeSet(s.opts.Exclude, root.Exclude),
	}
	if s.opts.Cache != nil {
		st.entries = make(map[string]cache.Entry)
	}

	if size, ok := s.measureDir(ctx, st, root.Path, ""); ok && size >= s.opts.MinSize {
		s.addDir(types.NewEntry(root.Path, size, 0, types.KindDirectory))
	}
	s.prog.Bump()

	walkErr := s.visit(ctx, st, root.Path, "", 0)

	// Collected cache entries are flushed even when the walk was cancelled.
	s.flushCache(st)
	return walkErr
}

// visit processes one directory at the given depth: files are checked
// against the threshold, child directories are measured as candidates, and
// the walk recurses while the depth bound allows.
func (s *Scanner) visit(ctx context.Context, st *rootScan, dir, rel string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Warn("cannot read directory", "path", dir, "error", err)
		s.addError(dir, err)
		return nil
	}

	maxDepth := st.root.MaxDepth
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := de.Name()
		childPath := filepath.Join(dir, name)

		if de.IsDir() {
			if _, skip := st.excluded[name]; skip {
				s.log.Debug("skipping excluded directory", "path", childPath)
				continue
			}

			childRel := filepath.Join(rel, name)
			childDepth := depth + 1
			s.prog.Bump()

			// Depth-1 directories under a bound of exactly 2 never
			// survive the persist filter; their measurement is skipped.
			if !(maxDepth == 2 && childDepth == 1) {
				if size, ok := s.measureDir(ctx, st, childPath, childRel); ok && size >= s.opts.MinSize {
					s.addDir(types.NewEntry(childPath, size, childDepth, types.KindDirectory))
				}
			}

			if maxDepth == 0 || childDepth < maxDepth {
				if err := s.visit(ctx, st, childPath, childRel, childDepth); err != nil {
					return err
				}
			}
			continue
		}

		if !de.Type().IsRegular() {
			continue
		}

		info, err := de.Info()
		if err != nil {
			s.log.Warn("cannot stat file", "path", childPath, "error", err)
			s.addError(childPath, err)
			continue
		}
		if info.Size() >= s.opts.MinSize {
			s.addFile(types.NewEntry(childPath, info.Size(), depth, types.KindFile))
		}
	}
	return nil
}

// measureDir returns the directory's recursive size, consulting the cache
// first when one is configured. A failed measurement is logged and reported
// as not-ok so the caller skips the candidate.
func (s *Scanner) measureDir(ctx context.Context, st *rootScan, path, rel string) (int64, bool) {
	if s.opts.Cache != nil {
		if size, ok := s.opts.Cache.Lookup(st.root.Path, rel); ok {
			st.hits++
			return size, true
		}
		st.misses++
	}

	size, err := s.sizer.Size(ctx, path, st.excluded)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("cannot measure directory", "path", path, "error", err)
			s.addError(path, err)
		}
		return 0, false
	}

	if st.entries != nil {
		if info, err := os.Stat(path); err == nil {
			st.entries[rel] = cache.Entry{IsDir: true, Size: size, Mtime: info.ModTime().UnixNano()}
		}
	}
	return size, true
}

func (s *Scanner) flushCache(st *rootScan) {
	if s.opts.Cache == nil {
		return
	}
	if len(st.entries) > 0 {
		if err := s.opts.Cache.Update(st.root.Path, st.entries); err != nil {
			s.log.Warn("cache update failed", "root", st.root.Path, "error", err)
		}
	}
	s.log.Debug("size cache", "root", st.root.Path, "hits", st.hits, "misses", st.misses)
}

// buildReport filters, orders, and packages the collected entries. It runs
// even after cancellation so already-collected entries are preserved.
func (s *Scanner) buildReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirs := applyDepthFilter(s.dirs, s.opts.Roots)
	files := applyDepthFilter(s.files, s.opts.Roots)
	sortByPath(dirs)
	sortByPath(files)

	roots := make([]string, len(s.opts.Roots))
	for i, r := range s.opts.Roots {
		roots[i] = r.Path
	}

	return &Report{
		ID:               types.NewRunID("scan"),
		ScanTime:         time.Now(),
		Roots:            roots,
		MinSize:          s.opts.MinSize,
		LargeDirectories: dirs,
		LargeFiles:       files,
		Errors:           append([]types.ScanError(nil), s.errs...),
	}
}

func (s *Scanner) addDir(e types.Entry) {
	s.mu.Lock()
	s.dirs = append(s.dirs, e)
	s.mu.Unlock()
	s.say("found large directory: %s (%s)", e.Path, e.SizeHuman)
}

func (s *Scanner) addFile(e types.Entry) {
	s.mu.Lock()
	s.files = append(s.files, e)
	s.mu.Unlock()
	s.say("found large file: %s (%s)", e.Path, e.SizeHuman)
}

func (s *Scanner) addError(path string, err error) {
	s.mu.Lock()
	s.errs = append(s.errs, types.ScanError{Path: path, Error: err.Error()})
	s.mu.Unlock()
}

// say logs the message and forwards it to the message sink.
func (s *Scanner) say(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.log.Info(msg)
	s.opts.OnMessage.Emit(msg)
}

func sortByPath(entries []types.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}

// excludeSet merges global and per-root exclusion names into a lookup set.
func excludeSet(global, perRoot []string) map[string]struct{} {
	set := make(map[string]struct{}, len(global)+len(perRoot))
	for _, name := range global {
		if name != "" {
			set[name] = struct{}{}
		}
	}
	for _, name := range perRoot {
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}
