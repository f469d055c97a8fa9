package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces a visually appealing output suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Stages) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatStages(r.Stages))
	}
	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

// formatHeader builds the header box with run metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	rootsLabel := LabelStyle.Render("Roots:")
	rootsValue := ValueStyle.Render(strings.Join(r.Roots, ", "))
	lines = append(lines, fmt.Sprintf("%s %s", rootsLabel, rootsValue))

	var infoParts []string
	if r.RunID != "" {
		infoParts = append(infoParts, fmt.Sprintf("%s %s",
			LabelStyle.Render("Run:"), MutedStyle.Render(r.RunID)))
	}
	if !r.ScanTime.IsZero() {
		infoParts = append(infoParts, fmt.Sprintf("%s %s",
			LabelStyle.Render("Scanned:"), ValueStyle.Render(r.ScanTime.Format(time.RFC3339))))
	}
	infoParts = append(infoParts, fmt.Sprintf("%s %s",
		LabelStyle.Render("Threshold:"), ValueStyle.Render(types.FormatSize(r.MinSize))))
	lines = append(lines, strings.Join(infoParts, "  "))

	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Run interrupted by user"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatTable builds the candidate table with SIZE, KIND and PATH columns.
func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Candidates) == 0 {
		return MutedStyle.Render("  No candidates above threshold\n")
	}

	var sb strings.Builder

	sizeHeader := TableHeaderStyle.Render("SIZE")
	kindHeader := TableHeaderStyle.Render("KIND")
	pathHeader := TableHeaderStyle.Render("PATH")
	sb.WriteString(fmt.Sprintf("  %s  %s  %s\n", sizeHeader, kindHeader, pathHeader))

	maxSizeWidth := 0
	for _, e := range r.Candidates {
		if len(e.SizeHuman) > maxSizeWidth {
			maxSizeWidth = len(e.SizeHuman)
		}
	}
	if maxSizeWidth < 8 {
		maxSizeWidth = 8
	}

	for _, e := range r.Candidates {
		sizeStr := SizeStyle.Render(padLeft(e.SizeHuman, maxSizeWidth))
		kindStr := KindStyle.Render(padRight(string(e.Kind), len("directory")))
		pathStr := PathStyle.Render(e.Path)
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n", sizeStr, kindStr, pathStr))
	}

	return sb.String()
}

// formatFooter builds the footer box with summary totals.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	var parts []string

	countLabel := LabelStyle.Render("Candidates:")
	countValue := ValueStyle.Render(fmt.Sprintf("%d", len(r.Candidates)))
	parts = append(parts, fmt.Sprintf("%s %s", countLabel, countValue))

	totalLabel := LabelStyle.Render("Total:")
	totalValue := SizeStyle.Render(humanize.IBytes(uint64(r.TotalSize)))
	parts = append(parts, fmt.Sprintf("%s %s", totalLabel, totalValue))

	hint := MutedStyle.Render("Use -o plain for unformatted output")
	parts = append(parts, hint)

	return FooterBox.Render(strings.Join(parts, "  "))
}

// formatStages builds the per-stage outcome block.
func (f *PrettyFormatter) formatStages(stages []StageSummary) string {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render("Stages:"))
	sb.WriteString("\n")
	for _, s := range stages {
		status := SuccessStyle.Render("ok")
		if !s.OK() {
			status = ErrorStyle.Render(fmt.Sprintf("%d failed", len(s.Failed)))
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			ValueStyle.Render(padRight(s.Stage, 8)), status, MutedStyle.Render(s.Describe())))
		for _, fail := range s.Failed {
			sb.WriteString(ErrorStyle.Render(fmt.Sprintf("    %s: %s", fail.Path, fail.Reason)))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// formatWarnings builds a warning block.
func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder

	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}

	return sb.String()
}

// padLeft pads a string with spaces on the left to the desired width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// padRight pads a string with spaces on the right to the desired width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
