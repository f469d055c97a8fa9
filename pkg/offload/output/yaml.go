package output

import (
	"bytes"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

// yamlOutput represents the full YAML output structure.
type yamlOutput struct {
	Candidates []yamlCandidate `yaml:"candidates"`
	Meta       yamlMeta        `yaml:"meta"`
	Stages     []yamlStage     `yaml:"stages,omitempty"`
}

// yamlCandidate represents a migration candidate in YAML output.
type yamlCandidate struct {
	Path      string `yaml:"path"`
	Kind      string `yaml:"kind"`
	Size      int64  `yaml:"size"`
	SizeHuman string `yaml:"size_human"`
	Depth     int    `yaml:"depth"`
}

// yamlMeta represents run metadata in YAML output.
type yamlMeta struct {
	RunID          string    `yaml:"run_id"`
	Roots          []string  `yaml:"roots"`
	MinSize        int64     `yaml:"min_size"`
	ScanTime       time.Time `yaml:"scan_time"`
	Candidates     int       `yaml:"candidates"`
	TotalSize      int64     `yaml:"total_size"`
	TotalSizeHuman string    `yaml:"total_size_human"`
	Warnings       []string  `yaml:"warnings,omitempty"`
	Interrupted    bool      `yaml:"interrupted"`
}

// yamlStage represents one stage outcome in YAML output.
type yamlStage struct {
	Stage    string          `yaml:"stage"`
	Done     int             `yaml:"done"`
	Skipped  int             `yaml:"skipped"`
	Failed   []types.Failure `yaml:"failed,omitempty"`
	Bytes    int64           `yaml:"bytes,omitempty"`
	Duration string          `yaml:"duration,omitempty"`
}

// YAMLFormatter formats output as YAML.
// It produces the same structure as JSONFormatter but in YAML format.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Result) error {
	candidates := make([]yamlCandidate, len(r.Candidates))
	for i, e := range r.Candidates {
		candidates[i] = yamlCandidate{
			Path:      e.Path,
			Kind:      string(e.Kind),
			Size:      e.Size,
			SizeHuman: e.SizeHuman,
			Depth:     e.Depth,
		}
	}

	meta := yamlMeta{
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

	stages := make([]yamlStage, 0, len(r.Stages))
	for _, s := range r.Stages {
		stages = append(stages, yamlStage{
			Stage:    s.Stage,
			Done:     s.Done,
			Skipped:  s.Skipped,
			Failed:   s.Failed,
			Bytes:    s.Bytes,
			Duration: formatDurationString(s.Duration),
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(yamlOutput{
		Candidates: candidates,
		Meta:       meta,
		Stages:     stages,
	}); err != nil {
		return err
	}
	return encoder.Close()
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

// Ensure YAMLFormatter implements Formatter.
var _ Formatter = (*YAMLFormatter)(nil)
