package mapping_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/offload/pkg/offload/mapping"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

func TestAddAndGet(t *testing.T) {
	m := mapping.New()

	require.NoError(t, m.Add("/src/a", "/dst/src/a"))
	require.NoError(t, m.Add("/src/b.bin", "/dst/src/b.bin"))

	dest, ok := m.Get("/src/a")
	assert.True(t, ok)
	assert.Equal(t, "/dst/src/a", dest)

	_, ok = m.Get("/src/missing")
	assert.False(t, ok)

	assert.Equal(t, 2, m.Len())
}

func TestAddRejectsDuplicateSource(t *testing.T) {
	m := mapping.New()

	require.NoError(t, m.Add("/src/a", "/dst/one"))
	err := m.Add("/src/a", "/dst/two")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already mapped")

	// Original pair untouched
	dest, ok := m.Get("/src/a")
	assert.True(t, ok)
	assert.Equal(t, "/dst/one", dest)
}

func TestEntriesSorted(t *testing.T) {
	m := mapping.New()
	require.NoError(t, m.Add("/src/c", "/dst/c"))
	require.NoError(t, m.Add("/src/a", "/dst/a"))
	require.NoError(t, m.Add("/src/b", "/dst/b"))

	entries := m.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "/src/a", entries[0].Source)
	assert.Equal(t, "/src/b", entries[1].Source)
	assert.Equal(t, "/src/c", entries[2].Source)
}

func TestConcurrentAdd(t *testing.T) {
	m := mapping.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			src := filepath.Join("/src", string(rune('a'+n%26)), "item")
			// Duplicates across goroutines are expected; only distinct
			// sources must land.
			_ = m.Add(src, "/dst"+src)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 26, m.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "mapping.json")

	m := mapping.New()
	require.NoError(t, m.Add("/src/a", "/dst/src/a"))
	require.NoError(t, m.Add("/src/b", "/dst/src/b"))
	require.NoError(t, m.Save(path))

	// No stray temp file remains
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := mapping.Load(path)
	require.NoError(t, err)

	assert.Equal(t, m.ID(), loaded.ID())
	assert.True(t, strings.HasPrefix(loaded.ID(), "migrate-"))
	assert.Equal(t, m.Pairs(), loaded.Pairs())
	assert.Equal(t, 2, loaded.Len())
}

func TestLoadMissingIsErrNoMapping(t *testing.T) {
	_, err := mapping.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNoMapping)
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := mapping.Load(path)
	require.Error(t, err)
}
