// Package cache persists measured directory sizes between scans so repeat
// runs skip re-walking unchanged subtrees. Entries are keyed by scan root
// plus relative path and validated by the directory's modification time.
//
// The validation is deliberately coarse: a file rewritten in place does not
// change its directory's mtime, so a cached size refreshes only after a
// structural change to the directory.
package cache

import (
	"os"
	"path/filepath"
)

// Cache is the size cache the scanner consults.
type Cache struct {
	store *Store
}

// Open opens or creates a cache at path.
func Open(path string) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Lookup returns the cached size for the directory relPath under root when
// the directory's current modification time matches the cached one. Any
// store or stat failure reads as a miss.
func (c *Cache) Lookup(root, relPath string) (int64, bool) {
	entry, err := c.store.Get(root, relPath)
	if err != nil {
		return 0, false
	}

	info, err := os.Stat(joinRel(root, relPath))
	if err != nil {
		return 0, false
	}
	if info.ModTime().UnixNano() != entry.Mtime {
		return 0, false
	}
	return entry.Size, true
}

// Update stores measured entries for root in one batch.
func (c *Cache) Update(root string, entries map[string]Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return c.store.PutBatch(root, entries)
}

// Clear removes all cached entries under root.
func (c *Cache) Clear(root string) error {
	return c.store.DeletePrefix(root)
}

// ClearAll drops every cached entry.
func (c *Cache) ClearAll() error {
	return c.store.DropAll()
}

func joinRel(root, relPath string) string {
	if relPath == "" {
		return root
	}
	return filepath.Join(root, relPath)
}
