package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jamesainslie/offload/pkg/offload/config"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// mkFile writes a file of the given size, creating parent directories.
func mkFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testRoot(t *testing.T) string {
	t.Helper()
	root, err := os.MkdirTemp("", "scanner-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(root) })
	return root
}

func runScan(t *testing.T, opts Options) *Report {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	report, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	return report
}

func dirPaths(r *Report) []string {
	paths := make([]string, len(r.LargeDirectories))
	for i, e := range r.LargeDirectories {
		paths[i] = e.Path
	}
	return paths
}

func filePaths(r *Report) []string {
	paths := make([]string, len(r.LargeFiles))
	for i, e := range r.LargeFiles {
		paths[i] = e.Path
	}
	return paths
}

func TestOptionsValidate(t *testing.T) {
	t.Run("no roots", func(t *testing.T) {
		opts := Options{}
		if err := opts.Validate(); !errors.Is(err, ErrNoRoots) {
			t.Errorf("expected ErrNoRoots, got %v", err)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		opts := Options{Roots: []config.Root{{Path: "/tmp"}}}
		if err := opts.Validate(); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if opts.MinSize != 500*types.MiB {
			t.Errorf("MinSize = %d, want %d", opts.MinSize, 500*types.MiB)
		}
		if opts.Workers < 4 {
			t.Errorf("Workers = %d, want >= 4", opts.Workers)
		}
	})

	t.Run("negative max depth clamped", func(t *testing.T) {
		opts := Options{Roots: []config.Root{{Path: "/tmp", MaxDepth: -3}}, MinSize: 1}
		if err := opts.Validate(); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if opts.Roots[0].MaxDepth != 0 {
			t.Errorf("MaxDepth = %d, want 0", opts.Roots[0].MaxDepth)
		}
	})
}

// TestScanDepthThree runs the depth-bounded reference tree: with a bound of
// 3 and a 20 KiB threshold, the root, its depth-1 child, and the depth-3
// leaf are retained while the depth-2 intermediate is dropped.
func TestScanDepthThree(t *testing.T) {
	root := testRoot(t)
	mkFile(t, filepath.Join(root, "a.bin"), 10240)
	mkFile(t, filepath.Join(root, "B", "b.bin"), 10240)
	mkFile(t, filepath.Join(root, "B", "C", "c.bin"), 5120)
	mkFile(t, filepath.Join(root, "B", "C", "D", "d.bin"), 25600)

	report := runScan(t, Options{
		Roots:   []config.Root{{Path: root, MaxDepth: 3}},
		MinSize: 20480,
		Workers: 2,
	})

	want := []string{
		root,
		filepath.Join(root, "B"),
		filepath.Join(root, "B", "C", "D"),
	}
	got := dirPaths(report)
	if len(got) != len(want) {
		t.Fatalf("directories = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("directories[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	wantEntries := []struct {
		path  string
		size  int64
		depth int
	}{
		{root, 51200, 0},
		{filepath.Join(root, "B"), 40960, 1},
		{filepath.Join(root, "B", "C", "D"), 25600, 3},
	}
	for i, w := range wantEntries {
		e := report.LargeDirectories[i]
		if e.Size != w.size {
			t.Errorf("%s size = %d, want %d", e.Path, e.Size, w.size)
		}
		if e.Depth != w.depth {
			t.Errorf("%s depth = %d, want %d", e.Path, e.Depth, w.depth)
		}
		if e.Kind != types.KindDirectory {
			t.Errorf("%s kind = %q, want directory", e.Path, e.Kind)
		}
	}

	// d.bin sits inside a depth-3 directory, below the traversal bound.
	if len(report.LargeFiles) != 0 {
		t.Errorf("files = %v, want none", filePaths(report))
	}
}

// TestScanDepthTwo verifies the special case: depth-1 directories are not
// measured when the bound is exactly 2, but traversal still reaches depth 2.
func TestScanDepthTwo(t *testing.T) {
	root := testRoot(t)
	mkFile(t, filepath.Join(root, "r.bin"), 30720)
	mkFile(t, filepath.Join(root, "X", "x.bin"), 5120)
	mkFile(t, filepath.Join(root, "X", "Y", "y.bin"), 25600)

	report := runScan(t, Options{
		Roots:   []config.Root{{Path: root, MaxDepth: 2}},
		MinSize: 20480,
		Workers: 1,
	})

	got := dirPaths(report)
	want := []string{root, filepath.Join(root, "X", "Y")}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("directories = %v, want %v", got, want)
	}

	files := filePaths(report)
	if len(files) != 1 || files[0] != filepath.Join(root, "r.bin") {
		t.Errorf("files = %v, want [r.bin]", files)
	}
}

func TestScanUnboundedKeepsAllLevels(t *testing.T) {
	root := testRoot(t)
	mkFile(t, filepath.Join(root, "a", "b", "c", "leaf.bin"), 30720)

	report := runScan(t, Options{
		Roots:   []config.Root{{Path: root}},
		MinSize: 20480,
		Workers: 1,
	})

	want := []string{
		root,
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "b"),
		filepath.Join(root, "a", "b", "c"),
	}
	got := dirPaths(report)
	if len(got) != len(want) {
		t.Fatalf("directories = %v, want %v", got, want)
	}

	files := filePaths(report)
	if len(files) != 1 || files[0] != filepath.Join(root, "a", "b", "c", "leaf.bin") {
		t.Errorf("files = %v, want leaf.bin", files)
	}
	// leaf.bin sits in a depth-3 directory.
	if report.LargeFiles[0].Depth != 3 {
		t.Errorf("file depth = %d, want 3", report.LargeFiles[0].Depth)
	}
}

// TestScanExclusions verifies excluded names are pruned entirely: no
// entries and no size contribution to any ancestor.
func TestScanExclusions(t *testing.T) {
	root := testRoot(t)
	mkFile(t, filepath.Join(root, "node_modules", "huge.bin"), 102400)
	mkFile(t, filepath.Join(root, "tmp", "big.bin"), 102400)
	mkFile(t, filepath.Join(root, "keep", "k.bin"), 30720)

	report := runScan(t, Options{
		Roots:   []config.Root{{Path: root, Exclude: []string{"tmp"}}},
		MinSize: 20480,
		Exclude: []string{"node_modules"},
		Workers: 1,
	})

	for _, p := range dirPaths(report) {
		if strings.Contains(p, "node_modules") || strings.Contains(p, "tmp") {
			t.Errorf("excluded directory leaked into results: %s", p)
		}
	}
	for _, p := range filePaths(report) {
		if strings.Contains(p, "node_modules") || strings.Contains(p, "tmp") {
			t.Errorf("file inside excluded directory leaked: %s", p)
		}
	}

	// The root's size counts only the kept subtree.
	var rootEntry *types.Entry
	for i := range report.LargeDirectories {
		if report.LargeDirectories[i].Path == root {
			rootEntry = &report.LargeDirectories[i]
		}
	}
	if rootEntry == nil {
		t.Fatal("root entry missing")
	}
	if rootEntry.Size != 30720 {
		t.Errorf("root size = %d, want 30720 (excluded trees must not count)", rootEntry.Size)
	}
}

func TestScanThresholdBoundary(t *testing.T) {
	root := testRoot(t)
	mkFile(t, filepath.Join(root, "exact.bin"), 20480)
	mkFile(t, filepath.Join(root, "under.bin"), 20479)

	report := runScan(t, Options{
		Roots:   []config.Root{{Path: root}},
		MinSize: 20480,
		Workers: 1,
	})

	files := filePaths(report)
	if len(files) != 1 || files[0] != filepath.Join(root, "exact.bin") {
		t.Errorf("files = %v, want exactly [exact.bin]", files)
	}
	for _, e := range report.LargeFiles {
		if e.Size < report.MinSize {
			t.Errorf("entry below threshold persisted: %s (%d)", e.Path, e.Size)
		}
	}
}

func TestScanIdempotent(t *testing.T) {
	root := testRoot(t)
	mkFile(t, filepath.Join(root, "a", "a.bin"), 30720)
	mkFile(t, filepath.Join(root, "b", "b.bin"), 40960)
	mkFile(t, filepath.Join(root, "big.bin"), 51200)

	opts := Options{Roots: []config.Root{{Path: root}}, MinSize: 20480, Workers: 4}
	first := runScan(t, opts)
	second := runScan(t, opts)

	if len(first.LargeDirectories) != len(second.LargeDirectories) {
		t.Fatalf("directory counts differ: %d vs %d",
			len(first.LargeDirectories), len(second.LargeDirectories))
	}
	for i := range first.LargeDirectories {
		a, b := first.LargeDirectories[i], second.LargeDirectories[i]
		if a.Path != b.Path || a.Size != b.Size || a.Depth != b.Depth {
			t.Errorf("directory %d differs: %+v vs %+v", i, a, b)
		}
	}
	if len(first.LargeFiles) != len(second.LargeFiles) {
		t.Fatalf("file counts differ")
	}
	for i := range first.LargeFiles {
		a, b := first.LargeFiles[i], second.LargeFiles[i]
		if a.Path != b.Path || a.Size != b.Size || a.Depth != b.Depth {
			t.Errorf("file %d differs: %+v vs %+v", i, a, b)
		}
	}
	if first.ID == second.ID {
		t.Error("run IDs should differ")
	}
}

func TestScanMissingRootSkipped(t *testing.T) {
	root := testRoot(t)
	mkFile(t, filepath.Join(root, "big.bin"), 30720)
	missing := filepath.Join(root, "no-such-dir-anywhere")

	report := runScan(t, Options{
		Roots:   []config.Root{{Path: missing}, {Path: root}},
		MinSize: 20480,
		Workers: 2,
	})

	if len(report.LargeFiles) != 1 {
		t.Errorf("files = %v, want one from the readable root", filePaths(report))
	}

	found := false
	for _, se := range report.Errors {
		if se.Path == missing {
			found = true
		}
	}
	if !found {
		t.Errorf("missing root not recorded in errors: %+v", report.Errors)
	}
}

func TestScanProgressMonotonic(t *testing.T) {
	root := testRoot(t)
	for i := 0; i < 8; i++ {
		mkFile(t, filepath.Join(root, string(rune('a'+i)), "f.bin"), 4096)
	}

	var mu sync.Mutex
	var pcts []int
	report := runScan(t, Options{
		Roots:   []config.Root{{Path: root}},
		MinSize: 1024,
		Workers: 2,
		OnProgress: func(pct int) {
			mu.Lock()
			pcts = append(pcts, pct)
			mu.Unlock()
		},
	})
	_ = report

	mu.Lock()
	defer mu.Unlock()
	if len(pcts) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(pcts); i++ {
		if pcts[i] < pcts[i-1] {
			t.Errorf("progress went backward: %v", pcts)
		}
	}
	if pcts[len(pcts)-1] != 100 {
		t.Errorf("final progress = %d, want 100", pcts[len(pcts)-1])
	}
	if pcts[0] != 0 {
		t.Errorf("first progress = %d, want 0", pcts[0])
	}
}

func TestScanCancelled(t *testing.T) {
	root := testRoot(t)
	for i := 0; i < 20; i++ {
		mkFile(t, filepath.Join(root, string(rune('a'+i)), "f.bin"), 2048)
	}

	s, err := New(Options{Roots: []config.Root{{Path: root}}, MinSize: 1024, Workers: 1})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := s.Scan(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if report == nil {
		t.Fatal("cancelled scan must still return the partial report")
	}
}

func TestScanMessages(t *testing.T) {
	root := testRoot(t)
	mkFile(t, filepath.Join(root, "big.bin"), 30720)

	var mu sync.Mutex
	var msgs []string
	runScan(t, Options{
		Roots:   []config.Root{{Path: root}},
		MinSize: 20480,
		Workers: 1,
		OnMessage: func(msg string) {
			mu.Lock()
			msgs = append(msgs, msg)
			mu.Unlock()
		},
	})

	mu.Lock()
	defer mu.Unlock()
	var sawFound, sawComplete bool
	for _, m := range msgs {
		if strings.Contains(m, "found large file") {
			sawFound = true
		}
		if strings.Contains(m, "scan complete") {
			sawComplete = true
		}
	}
	if !sawFound || !sawComplete {
		t.Errorf("expected found/complete messages, got %v", msgs)
	}
}

func TestKeepEntry(t *testing.T) {
	roots := []config.Root{{Path: "/data", MaxDepth: 3}}

	tests := []struct {
		name  string
		entry types.Entry
		want  bool
	}{
		{"root itself", types.Entry{Path: "/data", Depth: 0}, true},
		{"depth one kept above two", types.Entry{Path: "/data/a", Depth: 1}, true},
		{"intermediate dropped", types.Entry{Path: "/data/a/b", Depth: 2}, false},
		{"deepest kept", types.Entry{Path: "/data/a/b/c", Depth: 3}, true},
		{"beyond bound kept", types.Entry{Path: "/data/a/b/c/d", Depth: 4}, true},
		{"other volume untouched", types.Entry{Path: "/data2/x", Depth: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keepEntry(tt.entry, roots); got != tt.want {
				t.Errorf("keepEntry(%+v) = %v, want %v", tt.entry, got, tt.want)
			}
		})
	}

	t.Run("depth one dropped at bound two", func(t *testing.T) {
		roots := []config.Root{{Path: "/data", MaxDepth: 2}}
		if keepEntry(types.Entry{Path: "/data/a", Depth: 1}, roots) {
			t.Error("depth-1 entry must be dropped when the bound is 2")
		}
	})

	t.Run("unbounded root never filters", func(t *testing.T) {
		roots := []config.Root{{Path: "/data"}}
		if !keepEntry(types.Entry{Path: "/data/a/b", Depth: 2}, roots) {
			t.Error("unbounded roots must keep every depth")
		}
	})
}
