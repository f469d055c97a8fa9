package cleaner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/offload/pkg/offload/mapping"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// fakeBreaker scripts lock-holder enumeration. onKill lets a test release
// the underlying lock when the "holder" is terminated.
type fakeBreaker struct {
	mu      sync.Mutex
	holders []Process
	err     error
	onKill  func(p Process) error
	killed  []int
}

func (f *fakeBreaker) Holders(context.Context, string) ([]Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holders, f.err
}

func (f *fakeBreaker) Kill(p Process) error {
	f.mu.Lock()
	f.killed = append(f.killed, p.PID)
	kill := f.onKill
	f.mu.Unlock()
	if kill != nil {
		return kill(p)
	}
	return nil
}

// messages collects OnMessage emissions.
type messages struct {
	mu   sync.Mutex
	msgs []string
}

func (c *messages) add(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *messages) contains(t *testing.T, substr string) bool {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func newTestCleaner(t *testing.T, opts Options) (*Cleaner, *messages) {
	t.Helper()
	msgs := &messages{}
	opts.OnMessage = msgs.add
	c, err := New(opts)
	require.NoError(t, err)
	return c, msgs
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// migratedPair creates a real source and destination and records them in mp.
func migratedPair(t *testing.T, mp *mapping.Mapping, dir, name string) (source, dest string) {
	t.Helper()
	source = filepath.Join(dir, "src", name)
	dest = filepath.Join(dir, "dst", name)
	writeFile(t, source, []byte(name))
	writeFile(t, dest, []byte(name))
	require.NoError(t, mp.Add(source, dest))
	return source, dest
}

// heldDir builds a directory whose contents cannot be unlinked, which makes
// os.RemoveAll fail with a permission error. unlock restores write access.
func heldDir(t *testing.T) (dir string, unlock func()) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission-based lock simulation does not work as root")
	}
	dir = filepath.Join(t.TempDir(), "held")
	writeFile(t, filepath.Join(dir, "pin.txt"), []byte("pinned"))
	require.NoError(t, os.Chmod(dir, 0o555))
	unlock = func() { _ = os.Chmod(dir, 0o755) }
	t.Cleanup(unlock)
	return dir, unlock
}

func TestOptionsValidate(t *testing.T) {
	t.Run("nil mapping rejected", func(t *testing.T) {
		opts := Options{}
		assert.ErrorIs(t, opts.Validate(), types.ErrNoMapping)
	})

	t.Run("defaults filled", func(t *testing.T) {
		opts := Options{Mapping: mapping.New()}
		require.NoError(t, opts.Validate())
		assert.Equal(t, 3, opts.Retries)
		assert.Equal(t, time.Second, opts.RetryInterval)
	})
}

func TestCleanRemovesSources(t *testing.T) {
	dir := t.TempDir()
	mp := mapping.New()
	fileSrc, _ := migratedPair(t, mp, dir, "report.log")

	dirSrc := filepath.Join(dir, "src", "bundle")
	writeFile(t, filepath.Join(dirSrc, "a.txt"), []byte("a"))
	dirDst := filepath.Join(dir, "dst", "bundle")
	writeFile(t, filepath.Join(dirDst, "a.txt"), []byte("a"))
	require.NoError(t, mp.Add(dirSrc, dirDst))

	var pcts []int
	c, msgs := newTestCleaner(t, Options{Mapping: mp, RetryInterval: time.Millisecond})
	c.opts.OnProgress = func(pct int) { pcts = append(pcts, pct) }

	res, err := c.Clean(context.Background())
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.Equal(t, 2, res.Cleaned)
	assert.Equal(t, 0, res.Skipped)
	assert.NoFileExists(t, fileSrc)
	assert.NoDirExists(t, dirSrc)
	assert.True(t, msgs.contains(t, "clean complete: 2 sources removed"))
	require.NotEmpty(t, pcts)
	assert.Equal(t, 0, pcts[0])
	assert.Equal(t, 100, pcts[len(pcts)-1])
}

func TestCleanSourceAlreadyGone(t *testing.T) {
	dir := t.TempDir()
	mp := mapping.New()
	source, _ := migratedPair(t, mp, dir, "gone.bin")
	require.NoError(t, os.Remove(source))

	c, msgs := newTestCleaner(t, Options{Mapping: mp})
	res, err := c.Clean(context.Background())
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.Equal(t, 0, res.Cleaned)
	assert.Equal(t, 1, res.Skipped)
	assert.True(t, msgs.contains(t, "source already gone"))
}

func TestCleanDestinationMissingKeepsSource(t *testing.T) {
	dir := t.TempDir()
	mp := mapping.New()
	source, dest := migratedPair(t, mp, dir, "orphan.dat")
	require.NoError(t, os.Remove(dest))

	c, msgs := newTestCleaner(t, Options{Mapping: mp})
	res, err := c.Clean(context.Background())
	require.NoError(t, err)

	assert.False(t, res.OK())
	require.Len(t, res.Failed, 1)
	assert.Equal(t, source, res.Failed[0].Path)
	assert.Contains(t, res.Failed[0].Reason, "destination missing")
	assert.FileExists(t, source)
	assert.True(t, msgs.contains(t, "could not remove"))
}

// A directory entry sorted before a file entry inside it removes the file
// first-hand; the nested entry then counts as already gone.
func TestCleanNestedEntries(t *testing.T) {
	dir := t.TempDir()
	mp := mapping.New()

	parentSrc := filepath.Join(dir, "src", "models")
	nestedSrc := filepath.Join(parentSrc, "weights.bin")
	writeFile(t, nestedSrc, []byte("weights"))
	parentDst := filepath.Join(dir, "dst", "models")
	writeFile(t, filepath.Join(parentDst, "weights.bin"), []byte("weights"))
	require.NoError(t, mp.Add(parentSrc, parentDst))
	require.NoError(t, mp.Add(nestedSrc, filepath.Join(parentDst, "weights.bin")))

	c, _ := newTestCleaner(t, Options{Mapping: mp})
	res, err := c.Clean(context.Background())
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.Equal(t, 1, res.Cleaned)
	assert.Equal(t, 1, res.Skipped)
	assert.NoDirExists(t, parentSrc)
}

func TestCleanRetriesExhausted(t *testing.T) {
	held, _ := heldDir(t)
	dir := t.TempDir()
	destDir := filepath.Join(dir, "dst", "held")
	writeFile(t, filepath.Join(destDir, "pin.txt"), []byte("pinned"))

	mp := mapping.New()
	require.NoError(t, mp.Add(held, destDir))

	c, msgs := newTestCleaner(t, Options{
		Mapping:       mp,
		Retries:       2,
		RetryInterval: time.Millisecond,
	})
	res, err := c.Clean(context.Background())
	require.NoError(t, err)

	assert.False(t, res.OK())
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0].Reason, "gave up after 2 attempts")
	assert.DirExists(t, held)
	assert.True(t, msgs.contains(t, "retrying in"))
}

func TestCleanForceUnlockKillsHolder(t *testing.T) {
	held, unlock := heldDir(t)
	dir := t.TempDir()
	destDir := filepath.Join(dir, "dst", "held")
	writeFile(t, filepath.Join(destDir, "pin.txt"), []byte("pinned"))

	mp := mapping.New()
	require.NoError(t, mp.Add(held, destDir))

	prev := handleReleaseWait
	handleReleaseWait = time.Millisecond
	t.Cleanup(func() { handleReleaseWait = prev })

	fb := &fakeBreaker{holders: []Process{{PID: 4242, Name: "holder"}}}
	fb.onKill = func(Process) error {
		unlock()
		return nil
	}

	c, msgs := newTestCleaner(t, Options{
		Mapping:       mp,
		Retries:       2,
		RetryInterval: time.Millisecond,
		ForceUnlock:   true,
		Breaker:       fb,
	})
	res, err := c.Clean(context.Background())
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.Equal(t, 1, res.Cleaned)
	assert.Equal(t, []int{4242}, fb.killed)
	assert.NoDirExists(t, held)
	assert.True(t, msgs.contains(t, "terminating holder (pid 4242)"))
}

func TestCleanForceUnlockNoHolders(t *testing.T) {
	held, _ := heldDir(t)
	dir := t.TempDir()
	destDir := filepath.Join(dir, "dst", "held")
	writeFile(t, filepath.Join(destDir, "pin.txt"), []byte("pinned"))

	mp := mapping.New()
	require.NoError(t, mp.Add(held, destDir))

	fb := &fakeBreaker{}
	c, msgs := newTestCleaner(t, Options{
		Mapping:       mp,
		Retries:       2,
		RetryInterval: time.Millisecond,
		ForceUnlock:   true,
		Breaker:       fb,
	})
	res, err := c.Clean(context.Background())
	require.NoError(t, err)

	assert.False(t, res.OK())
	assert.Empty(t, fb.killed)
	assert.True(t, msgs.contains(t, "no process found holding"))
	assert.DirExists(t, held)
}

func TestCleanCancelled(t *testing.T) {
	dir := t.TempDir()
	mp := mapping.New()
	source, _ := migratedPair(t, mp, dir, "keep.bin")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, msgs := newTestCleaner(t, Options{Mapping: mp})
	res, err := c.Clean(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, res.Cleaned)
	assert.FileExists(t, source)
	assert.True(t, msgs.contains(t, "clean cancelled"))
}

func TestCleanEmptyMapping(t *testing.T) {
	c, msgs := newTestCleaner(t, Options{Mapping: mapping.New()})
	res, err := c.Clean(context.Background())
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.Zero(t, res.Cleaned)
	assert.True(t, msgs.contains(t, "nothing to clean"))
}
