// Package types provides core data types for the offload migration pipeline.
// It includes the scan entry structure shared by all pipeline stages, the
// callback types stages use to report progress, and utility functions for
// parsing and formatting file sizes.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// Kind distinguishes the two classes of migration candidate.
type Kind string

// Candidate kinds recorded in scan entries.
const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Entry describes one oversized item discovered by the scanner.
// Entries are immutable after creation; they are serialized into the scan
// report and consumed by the migrator.
type Entry struct {
	// Path is the absolute path to the file or directory.
	Path string `json:"path"`

	// Size is the total size in bytes. For directories this is the
	// recursive sum of contained file sizes.
	Size int64 `json:"size"`

	// SizeHuman is Size formatted with binary (IEC) units.
	SizeHuman string `json:"size_human"`

	// Depth is the entry's depth relative to its scan root.
	// The root directory itself is depth 0.
	Depth int `json:"depth"`

	// Kind is "file" or "directory".
	Kind Kind `json:"kind"`
}

// NewEntry builds an Entry with SizeHuman derived from size.
func NewEntry(path string, size int64, depth int, kind Kind) Entry {
	return Entry{
		Path:      path,
		Size:      size,
		SizeHuman: FormatSize(size),
		Depth:     depth,
		Kind:      kind,
	}
}

// ScanError represents an error encountered while scanning.
// It pairs a path with the error message for debugging and reporting.
type ScanError struct {
	// Path is the file or directory path where the error occurred.
	Path string `json:"path"`

	// Error is the error message describing what went wrong.
	Error string `json:"error"`
}

// Failure records one per-item failure within a pipeline stage.
// Stages collect failures instead of aborting: a stage's result is full
// success only when its failure list is empty.
type Failure struct {
	// Path is the item that failed.
	Path string `json:"path"`

	// Reason is the failure message.
	Reason string `json:"reason"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// It supports the following formats:
//   - Plain bytes: "1024", "0"
//   - With byte suffix: "512B", "512b"
//   - Kilobytes: "100K", "100k", "100KB", "100KiB"
//   - Megabytes: "50M", "50m", "50MB", "50MiB"
//   - Gigabytes: "2G", "2g", "2GB", "2GiB"
//   - Terabytes: "1T", "1t", "1TB", "1TiB"
//
// Decimal values are supported and truncated to the nearest byte.
// Leading and trailing whitespace is ignored.
//
// Returns ErrInvalidSize if the format is not recognized.
// Returns ErrNegativeSize if the value is negative.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	// Check for negative values
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	// Parse the numeric value
	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	// Determine the multiplier based on the suffix
	suffix := strings.ToUpper(matches[2])
	// Remove 'B' or 'IB' suffix to get just the unit letter
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string.
// It uses binary (IEC) units (KiB, MiB, GiB, TiB) for consistency
// with common filesystem tools.
//
// Examples:
//   - FormatSize(0) returns "0 B"
//   - FormatSize(1024) returns "1.0 KiB"
//   - FormatSize(1536*1024) returns "1.5 MiB"
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}
