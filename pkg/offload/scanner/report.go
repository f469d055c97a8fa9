package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

// Report is the scan stage's output artifact: the filtered collections of
// oversized directories and files, persisted as JSON and read back by the
// migrate stage.
type Report struct {
	ID               string            `json:"id"`
	ScanTime         time.Time         `json:"scan_time"`
	Roots            []string          `json:"roots"`
	MinSize          int64             `json:"min_size"`
	LargeDirectories []types.Entry     `json:"large_directories"`
	LargeFiles       []types.Entry     `json:"large_files"`
	Errors           []types.ScanError `json:"errors,omitempty"`
}

// Entries returns every candidate, directories before files.
func (r *Report) Entries() []types.Entry {
	all := make([]types.Entry, 0, len(r.LargeDirectories)+len(r.LargeFiles))
	all = append(all, r.LargeDirectories...)
	all = append(all, r.LargeFiles...)
	return all
}

// TotalSize returns the combined size in bytes of every candidate.
func (r *Report) TotalSize() int64 {
	var total int64
	for _, e := range r.LargeDirectories {
		total += e.Size
	}
	for _, e := range r.LargeFiles {
		total += e.Size
	}
	return total
}

// Count returns the number of candidates.
func (r *Report) Count() int {
	return len(r.LargeDirectories) + len(r.LargeFiles)
}

// Save writes the report to path, creating parent directories as needed.
// The write goes through a temp file and rename so a concurrent reader
// never sees a torn report.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scan report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// LoadReport reads a report previously written by Save. A missing file is
// reported as types.ErrNoReport so callers can distinguish "never scanned"
// from a corrupt artifact.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrNoReport, path)
		}
		return nil, fmt.Errorf("failed to read scan report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan report: %w", err)
	}
	return &r, nil
}
