// Package mapping manages the path mapping artifact: the durable record of
// completed source-to-destination migrations. The migrator writes it; the
// cleaner and linker consume it read-only. It is the pipeline's only
// persisted witness of per-entry progress.
package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

// Entry is one migrated source path and its destination.
type Entry struct {
	Source string
	Dest   string
}

// Mapping records source→destination pairs for completed migrations.
// Add is safe for concurrent use; migrator workers share one Mapping.
type Mapping struct {
	mu      sync.Mutex
	id      string
	created time.Time
	pairs   map[string]string
}

// document is the serialized artifact form.
type document struct {
	ID            string            `json:"id"`
	MigrationTime time.Time         `json:"migration_time"`
	Count         int               `json:"count"`
	Mapping       map[string]string `json:"mapping"`
}

// New creates an empty mapping with a fresh run ID.
func New() *Mapping {
	return &Mapping{
		id:      types.NewRunID("migrate"),
		created: time.Now().UTC(),
		pairs:   make(map[string]string),
	}
}

// ID returns the mapping's run identifier.
func (m *Mapping) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// CreatedAt returns the migration timestamp.
func (m *Mapping) CreatedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// Add records a completed migration. A source may be migrated at most once;
// adding a duplicate source is an error.
func (m *Mapping) Add(source, dest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.pairs[source]; ok {
		return fmt.Errorf("source %s already mapped to %s", source, existing)
	}
	m.pairs[source] = dest
	return nil
}

// Get returns the destination for a source path.
func (m *Mapping) Get(source string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dest, ok := m.pairs[source]
	return dest, ok
}

// Len returns the number of recorded migrations.
func (m *Mapping) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pairs)
}

// Entries returns all pairs sorted by source path. Consumers process
// entries independently, so the ordering only serves determinism.
func (m *Mapping) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]Entry, 0, len(m.pairs))
	for src, dst := range m.pairs {
		entries = append(entries, Entry{Source: src, Dest: dst})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Source < entries[j].Source
	})
	return entries
}

// Pairs returns a copy of the raw mapping.
func (m *Mapping) Pairs() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs := make(map[string]string, len(m.pairs))
	for k, v := range m.pairs {
		pairs[k] = v
	}
	return pairs
}

// Save writes the mapping artifact atomically using a temp file and rename.
// Parent directories are created as needed.
func (m *Mapping) Save(path string) error {
	m.mu.Lock()
	doc := document{
		ID:            m.id,
		MigrationTime: m.created,
		Count:         len(m.pairs),
		Mapping:       m.pairs,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create mapping directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Cleanup temp file on rename failure
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Load reads a mapping artifact from disk. A missing file is reported as
// types.ErrNoMapping so callers can fail the stage precondition cleanly.
func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrNoMapping, path)
		}
		return nil, fmt.Errorf("failed to read mapping: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mapping: %w", err)
	}

	m := &Mapping{
		id:      doc.ID,
		created: doc.MigrationTime,
		pairs:   doc.Mapping,
	}
	if m.pairs == nil {
		m.pairs = make(map[string]string)
	}
	return m, nil
}
