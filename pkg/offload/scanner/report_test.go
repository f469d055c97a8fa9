package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamesainslie/offload/pkg/offload/types"
)

func sampleReport() *Report {
	return &Report{
		ID:       types.NewRunID("scan"),
		ScanTime: time.Now(),
		Roots:    []string{"/data"},
		MinSize:  20480,
		LargeDirectories: []types.Entry{
			types.NewEntry("/data/models", 4*types.GiB, 1, types.KindDirectory),
		},
		LargeFiles: []types.Entry{
			types.NewEntry("/data/dump.bin", 600*types.MiB, 0, types.KindFile),
		},
	}
}

func TestReportSaveLoad(t *testing.T) {
	dir := testRoot(t)
	path := filepath.Join(dir, "state", "scan.json")

	r := sampleReport()
	if err := r.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}

	loaded, err := LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport failed: %v", err)
	}
	if loaded.ID != r.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, r.ID)
	}
	if loaded.MinSize != r.MinSize {
		t.Errorf("MinSize = %d, want %d", loaded.MinSize, r.MinSize)
	}
	if len(loaded.LargeDirectories) != 1 || loaded.LargeDirectories[0].Path != "/data/models" {
		t.Errorf("directories = %+v", loaded.LargeDirectories)
	}
	if len(loaded.LargeFiles) != 1 || loaded.LargeFiles[0].Size != 600*types.MiB {
		t.Errorf("files = %+v", loaded.LargeFiles)
	}
	if loaded.ScanTime.IsZero() {
		t.Error("scan time lost in round trip")
	}
}

func TestLoadReportMissing(t *testing.T) {
	_, err := LoadReport(filepath.Join(testRoot(t), "absent.json"))
	if !errors.Is(err, types.ErrNoReport) {
		t.Errorf("expected ErrNoReport, got %v", err)
	}
}

func TestLoadReportCorrupt(t *testing.T) {
	dir := testRoot(t)
	path := filepath.Join(dir, "scan.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadReport(path)
	if err == nil {
		t.Fatal("expected error for corrupt report")
	}
	if errors.Is(err, types.ErrNoReport) {
		t.Error("corrupt report must not read as missing")
	}
}

func TestReportHelpers(t *testing.T) {
	r := sampleReport()

	if got := r.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
	wantTotal := 4*types.GiB + 600*types.MiB
	if got := r.TotalSize(); got != wantTotal {
		t.Errorf("TotalSize = %d, want %d", got, wantTotal)
	}

	all := r.Entries()
	if len(all) != 2 {
		t.Fatalf("Entries = %d items, want 2", len(all))
	}
	if all[0].Kind != types.KindDirectory || all[1].Kind != types.KindFile {
		t.Error("Entries must list directories before files")
	}
}
