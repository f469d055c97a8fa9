package types

import (
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		// Basic byte values
		{name: "plain bytes", input: "1024", want: 1024, wantErr: false},
		{name: "zero bytes", input: "0", want: 0, wantErr: false},
		{name: "bytes with B suffix", input: "512B", want: 512, wantErr: false},
		{name: "bytes with lowercase b", input: "512b", want: 512, wantErr: false},

		// Kilobytes
		{name: "kilobytes uppercase", input: "100K", want: 100 * 1024, wantErr: false},
		{name: "kilobytes lowercase", input: "100k", want: 100 * 1024, wantErr: false},
		{name: "kilobytes with B", input: "100KB", want: 100 * 1024, wantErr: false},
		{name: "kilobytes with iB", input: "100KiB", want: 100 * 1024, wantErr: false},

		// Megabytes
		{name: "megabytes uppercase", input: "50M", want: 50 * 1024 * 1024, wantErr: false},
		{name: "megabytes with iB", input: "50MiB", want: 50 * 1024 * 1024, wantErr: false},

		// Gigabytes and terabytes
		{name: "gigabytes", input: "2G", want: 2 * 1024 * 1024 * 1024, wantErr: false},
		{name: "terabytes", input: "1T", want: 1024 * 1024 * 1024 * 1024, wantErr: false},

		// Whitespace handling
		{name: "leading whitespace", input: "  100M", want: 100 * 1024 * 1024, wantErr: false},
		{name: "trailing whitespace", input: "100M  ", want: 100 * 1024 * 1024, wantErr: false},

		// Edge cases
		{name: "decimal values truncated", input: "1.5G", want: 1610612736, wantErr: false},
		{name: "default threshold", input: "500MB", want: 500 * 1024 * 1024, wantErr: false},

		// Error cases
		{name: "empty string", input: "", wantErr: true},
		{name: "only whitespace", input: "   ", wantErr: true},
		{name: "invalid suffix", input: "100X", wantErr: true},
		{name: "negative value", input: "-100M", wantErr: true},
		{name: "letters only", input: "abc", wantErr: true},
		{name: "suffix only", input: "M", wantErr: true},
		{name: "invalid format", input: "100M100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{name: "zero", bytes: 0, want: "0 B"},
		{name: "bytes", bytes: 500, want: "500 B"},
		{name: "kilobytes", bytes: 1024, want: "1.0 KiB"},
		{name: "megabytes", bytes: 1024 * 1024, want: "1.0 MiB"},
		{name: "gigabytes", bytes: 1024 * 1024 * 1024, want: "1.0 GiB"},
		{name: "terabytes", bytes: 1024 * 1024 * 1024 * 1024, want: "1.0 TiB"},
		{name: "mixed size", bytes: 1536 * 1024, want: "1.5 MiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatSize(tt.bytes)
			if got != tt.want {
				t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestNewEntry(t *testing.T) {
	e := NewEntry("/data/models", 5*MiB, 2, KindDirectory)

	if e.Path != "/data/models" {
		t.Errorf("Path = %q, want %q", e.Path, "/data/models")
	}
	if e.Size != 5*MiB {
		t.Errorf("Size = %d, want %d", e.Size, 5*MiB)
	}
	if e.SizeHuman != "5.0 MiB" {
		t.Errorf("SizeHuman = %q, want %q", e.SizeHuman, "5.0 MiB")
	}
	if e.Depth != 2 {
		t.Errorf("Depth = %d, want 2", e.Depth)
	}
	if e.Kind != KindDirectory {
		t.Errorf("Kind = %q, want %q", e.Kind, KindDirectory)
	}
}

func TestSinksNilSafe(t *testing.T) {
	// Nil sinks must be callable without panicking.
	var m MessageFunc
	var p ProgressFunc
	m.Emit("ignored")
	p.Emit(50)

	var got string
	m = func(msg string) { got = msg }
	m.Emit("copied")
	if got != "copied" {
		t.Errorf("MessageFunc.Emit delivered %q, want %q", got, "copied")
	}

	var pct int
	p = func(v int) { pct = v }
	p.Emit(42)
	if pct != 42 {
		t.Errorf("ProgressFunc.Emit delivered %d, want 42", pct)
	}
}
