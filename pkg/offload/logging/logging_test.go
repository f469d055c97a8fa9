package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/offload/pkg/offload/logging"
)

// TestInit tests the Init function with various configurations.
// Note: This test cannot run in parallel with other tests that use global state.
func TestInit(t *testing.T) {
	validDir := t.TempDir()
	componentsDir := t.TempDir()
	invalidDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "valid config with defaults",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(validDir, "test.log"),
			},
			wantErr: false,
		},
		{
			name: "valid config with component overrides",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(componentsDir, "components.log"),
				Components: map[string]string{
					"scanner": "debug",
					"cleaner": "warn",
				},
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			cfg: logging.Config{
				Level: "invalid",
				Path:  filepath.Join(invalidDir, "invalid.log"),
			},
			wantErr: true,
		},
		{
			name: "invalid component level",
			cfg: logging.Config{
				Level:      "info",
				Path:       filepath.Join(invalidDir, "component.log"),
				Components: map[string]string{"migrator": "loud"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Note: No t.Parallel() - these tests modify global state

			err := logging.Init(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if err == nil {
				if closeErr := logging.Close(); closeErr != nil {
					t.Errorf("Close() error = %v", closeErr)
				}
			}
		})
	}
}

func TestGetWritesToFile(t *testing.T) {
	// No t.Parallel() - uses global state

	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "offload.log")
	cfg := logging.Config{
		Level: "info",
		Path:  path,
	}

	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logger := logging.Get("migrator")
	logger.Info("transfer complete", "path", "/data/models")
	logger.Debug("suppressed at info level")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "transfer complete") {
		t.Errorf("log file missing info message, got: %s", content)
	}
	if !strings.Contains(content, "migrator") {
		t.Errorf("log file missing component prefix, got: %s", content)
	}
	if strings.Contains(content, "suppressed at info level") {
		t.Errorf("debug message leaked through info level, got: %s", content)
	}
}

func TestGetBeforeInitIsSilent(t *testing.T) {
	// No t.Parallel() - uses global state

	// Ensure a clean slate
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Must not panic or create files
	logger := logging.Get("linker")
	logger.Info("discarded before init")
}

func TestComponentLevelOverride(t *testing.T) {
	// No t.Parallel() - uses global state

	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "offload.log")
	cfg := logging.Config{
		Level: "warn",
		Path:  path,
		Components: map[string]string{
			"cleaner": "debug",
		},
	}

	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("cleaner").Debug("retry attempt", "n", 2)
	logging.Get("scanner").Info("suppressed at warn level")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "retry attempt") {
		t.Errorf("component override did not lower cleaner level, got: %s", content)
	}
	if strings.Contains(content, "suppressed at warn level") {
		t.Errorf("scanner info leaked through warn default, got: %s", content)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"info", logging.LevelInfo, false},
		{"warn", logging.LevelWarn, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"ERROR", logging.LevelError, false},
		{"verbose", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
