package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/offload/pkg/offload/cache"
	"github.com/jamesainslie/offload/pkg/offload/config"
)

func openScanCache(t *testing.T) *cache.Cache {
	t.Helper()
	dir, err := os.MkdirTemp("", "scan-cache-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	c, err := cache.Open(dir)
	if err != nil {
		t.Fatalf("cache.Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestScanPopulatesCache(t *testing.T) {
	root := testRoot(t)
	mkFile(t, filepath.Join(root, "sub", "f.bin"), 30720)

	c := openScanCache(t)
	runScan(t, Options{
		Roots:   []config.Root{{Path: root}},
		MinSize: 20480,
		Workers: 1,
		Cache:   c,
	})

	size, ok := c.Lookup(root, "sub")
	if !ok {
		t.Fatal("expected cached entry for measured directory")
	}
	if size != 30720 {
		t.Errorf("cached size = %d, want 30720", size)
	}

	// The root itself is cached under the empty relative path.
	if size, ok := c.Lookup(root, ""); !ok || size != 30720 {
		t.Errorf("root cache entry = (%d, %v), want (30720, true)", size, ok)
	}
}

// TestScanUsesCachedSize seeds the cache with a deliberately wrong size and
// a matching mtime: the scan must trust it, proving the lookup short-circuits
// the measurement.
func TestScanUsesCachedSize(t *testing.T) {
	root := testRoot(t)
	sub := filepath.Join(root, "sub")
	mkFile(t, filepath.Join(sub, "f.bin"), 30720)

	info, err := os.Stat(sub)
	if err != nil {
		t.Fatal(err)
	}

	c := openScanCache(t)
	err = c.Update(root, map[string]cache.Entry{
		"sub": {IsDir: true, Size: 99999, Mtime: info.ModTime().UnixNano()},
	})
	if err != nil {
		t.Fatal(err)
	}

	report := runScan(t, Options{
		Roots:   []config.Root{{Path: root}},
		MinSize: 20480,
		Workers: 1,
		Cache:   c,
	})

	for _, e := range report.LargeDirectories {
		if e.Path == sub && e.Size != 99999 {
			t.Errorf("scan ignored the cache: size = %d, want 99999", e.Size)
		}
	}
}

func TestScanRefreshesStaleCache(t *testing.T) {
	root := testRoot(t)
	sub := filepath.Join(root, "sub")
	mkFile(t, filepath.Join(sub, "f.bin"), 30720)

	c := openScanCache(t)
	// A stale mtime must force a re-measure.
	err := c.Update(root, map[string]cache.Entry{
		"sub": {IsDir: true, Size: 99999, Mtime: 12345},
	})
	if err != nil {
		t.Fatal(err)
	}

	report := runScan(t, Options{
		Roots:   []config.Root{{Path: root}},
		MinSize: 20480,
		Workers: 1,
		Cache:   c,
	})

	for _, e := range report.LargeDirectories {
		if e.Path == sub && e.Size != 30720 {
			t.Errorf("stale cache entry survived: size = %d, want 30720", e.Size)
		}
	}

	// The refreshed measurement is written back.
	if size, ok := c.Lookup(root, "sub"); !ok || size != 30720 {
		t.Errorf("refreshed cache = (%d, %v), want (30720, true)", size, ok)
	}
}

func TestScanWithoutCacheMatchesCachedScan(t *testing.T) {
	root := testRoot(t)
	mkFile(t, filepath.Join(root, "a", "a.bin"), 30720)
	mkFile(t, filepath.Join(root, "b", "b.bin"), 40960)

	plain := runScan(t, Options{
		Roots:   []config.Root{{Path: root}},
		MinSize: 20480,
		Workers: 1,
	})
	cached := runScan(t, Options{
		Roots:   []config.Root{{Path: root}},
		MinSize: 20480,
		Workers: 1,
		Cache:   openScanCache(t),
	})

	if len(plain.LargeDirectories) != len(cached.LargeDirectories) {
		t.Fatalf("directory counts differ: %d vs %d",
			len(plain.LargeDirectories), len(cached.LargeDirectories))
	}
	for i := range plain.LargeDirectories {
		a, b := plain.LargeDirectories[i], cached.LargeDirectories[i]
		if a.Path != b.Path || a.Size != b.Size {
			t.Errorf("entry %d differs: %+v vs %+v", i, a, b)
		}
	}
}
