// Package output provides formatters for displaying scan results and
// pipeline stage summaries in various formats (pretty, plain, json, yaml).
//
// The package uses a registry pattern so formatter implementations can be
// selected at runtime by name.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/scanner"
	"github.com/jamesainslie/offload/pkg/offload/types"
)

// StageSummary is the outcome of one pipeline stage in display form.
type StageSummary struct {
	// Stage names the pipeline stage ("migrate", "clean", "link").
	Stage string `json:"stage" yaml:"stage"`

	// Done counts items the stage completed.
	Done int `json:"done" yaml:"done"`

	// Skipped counts items the stage passed over.
	Skipped int `json:"skipped" yaml:"skipped"`

	// Failed lists per-item failures.
	Failed []types.Failure `json:"failed,omitempty" yaml:"failed,omitempty"`

	// Bytes is the data volume the stage moved, zero for stages that do
	// not transfer data.
	Bytes int64 `json:"bytes,omitempty" yaml:"bytes,omitempty"`

	// Duration is the stage's wall-clock time.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// OK reports whether the stage finished without per-item failures.
func (s StageSummary) OK() bool {
	return len(s.Failed) == 0
}

// Describe renders the summary counters as one line.
func (s StageSummary) Describe() string {
	desc := fmt.Sprintf("%d done, %d skipped, %d failed", s.Done, s.Skipped, len(s.Failed))
	if s.Bytes > 0 {
		desc += ", " + types.FormatSize(s.Bytes)
	}
	if s.Duration > 0 {
		desc += " in " + formatDuration(s.Duration)
	}
	return desc
}

// Result contains the complete output data for formatting: the candidate
// table from a scan plus whichever stage summaries the invocation produced.
type Result struct {
	// RunID identifies the scan that produced the candidates.
	RunID string `json:"run_id" yaml:"run_id"`

	// Roots are the scanned source roots.
	Roots []string `json:"roots" yaml:"roots"`

	// MinSize is the candidate threshold in bytes.
	MinSize int64 `json:"min_size" yaml:"min_size"`

	// ScanTime is when the scan ran.
	ScanTime time.Time `json:"scan_time" yaml:"scan_time"`

	// Candidates lists oversized directories and files, directories first.
	Candidates []types.Entry `json:"candidates" yaml:"candidates"`

	// TotalSize is the combined candidate size in bytes.
	TotalSize int64 `json:"total_size" yaml:"total_size"`

	// Warnings carries scan errors in display form.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Stages holds per-stage outcomes in pipeline order.
	Stages []StageSummary `json:"stages,omitempty" yaml:"stages,omitempty"`

	// Interrupted reports a cancelled run.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`
}

// FromReport builds a displayable Result from a scan report.
func FromReport(r *scanner.Report) *Result {
	res := &Result{
		RunID:      r.ID,
		Roots:      r.Roots,
		MinSize:    r.MinSize,
		ScanTime:   r.ScanTime,
		Candidates: r.Entries(),
		TotalSize:  r.TotalSize(),
	}
	for _, e := range r.Errors {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", e.Path, e.Error))
	}
	return res
}

// AddStage appends a stage summary in pipeline order.
func (r *Result) AddStage(s StageSummary) {
	r.Stages = append(r.Stages, s)
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (available: %s)", name, strings.Join(r.available(), ", "))
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available()
}

func (r *Registry) available() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
