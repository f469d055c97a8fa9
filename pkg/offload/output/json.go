package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Candidates []jsonCandidate `json:"candidates"`
	Meta       jsonMeta        `json:"meta"`
	Stages     []jsonStage     `json:"stages,omitempty"`
}

// jsonCandidate represents a migration candidate in JSON output.
type jsonCandidate struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
	Depth     int    `json:"depth"`
}

// jsonMeta represents run metadata in JSON output.
type jsonMeta struct {
	RunID          string    `json:"run_id"`
	Roots          []string  `json:"roots"`
	MinSize        int64     `json:"min_size"`
	ScanTime       time.Time `json:"scan_time"`
	Candidates     int       `json:"candidates"`
	TotalSize      int64     `json:"total_size"`
	TotalSizeHuman string    `json:"total_size_human"`
	Warnings       []string  `json:"warnings,omitempty"`
	Interrupted    bool      `json:"interrupted"`
}

// jsonStage represents one stage outcome in JSON output.
type jsonStage struct {
	Stage    string          `json:"stage"`
	Done     int             `json:"done"`
	Skipped  int             `json:"skipped"`
	Failed   []types.Failure `json:"failed,omitempty"`
	Bytes    int64           `json:"bytes,omitempty"`
	Duration string          `json:"duration,omitempty"`
}

// JSONFormatter formats output as a single indented JSON object.
// It produces a complete JSON document with candidates, meta, and stages.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildJSONOutput(r))
}

// buildJSONOutput converts Result to the JSON output structure.
func buildJSONOutput(r *Result) jsonOutput {
	candidates := make([]jsonCandidate, len(r.Candidates))
	for i, e := range r.Candidates {
		candidates[i] = newJSONCandidate(e)
	}

	meta := jsonMeta{
		RunID:          r.RunID,
		Roots:          r.Roots,
		MinSize:        r.MinSize,
		ScanTime:       r.ScanTime,
		Candidates:     len(r.Candidates),
		TotalSize:      r.TotalSize,
		TotalSizeHuman: types.FormatSize(r.TotalSize),
		Warnings:       r.Warnings,
		Interrupted:    r.Interrupted,
	}

	stages := make([]jsonStage, 0, len(r.Stages))
	for _, s := range r.Stages {
		stages = append(stages, jsonStage{
			Stage:    s.Stage,
			Done:     s.Done,
			Skipped:  s.Skipped,
			Failed:   s.Failed,
			Bytes:    s.Bytes,
			Duration: formatDurationString(s.Duration),
		})
	}

	return jsonOutput{
		Candidates: candidates,
		Meta:       meta,
		Stages:     stages,
	}
}

func newJSONCandidate(e types.Entry) jsonCandidate {
	return jsonCandidate{
		Path:      e.Path,
		Kind:      string(e.Kind),
		Size:      e.Size,
		SizeHuman: e.SizeHuman,
		Depth:     e.Depth,
	}
}

// formatDurationString formats a duration as a string for structured output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter formats output as newline-delimited JSON, one candidate
// per line. This format is suitable for streaming processing with tools
// like jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, e := range r.Candidates {
		data, err := json.Marshal(newJSONCandidate(e))
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
