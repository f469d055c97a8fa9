package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter formats output as a simple tab-separated table followed by
// one line per stage summary. It produces plain text suitable for scripting
// and piping. No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := tw.Write([]byte("SIZE\tKIND\tPATH\n")); err != nil {
		return err
	}
	for _, e := range r.Candidates {
		if _, err := tw.Write([]byte(e.SizeHuman + "\t" + string(e.Kind) + "\t" + e.Path + "\n")); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, s := range r.Stages {
		fmt.Fprintf(w, "%s: %s\n", s.Stage, s.Describe())
		for _, fail := range s.Failed {
			fmt.Fprintf(w, "failed (%s): %s: %s\n", s.Stage, fail.Path, fail.Reason)
		}
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
