package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/clbench/internal/harness"
	"github.com/cwbudde/clbench/internal/store"
	"github.com/cwbudde/clbench/internal/workloads"
)

// useHostFlags points the shared flag variables at the repository kernels and
// a temporary data directory, restoring them afterwards.
func useHostFlags(t *testing.T) {
	t.Helper()
	kernels, artifacts, data := kernelsRoot, artifactDir, dataDir
	check, size, record := checkLevel, paramSize, recordRun
	t.Cleanup(func() {
		kernelsRoot, artifactDir, dataDir = kernels, artifacts, data
		checkLevel, paramSize, recordRun = check, size, record
	})

	dir := t.TempDir()
	kernelsRoot = "../support/kernels"
	artifactDir = dir
	dataDir = filepath.Join(dir, "data")
	checkLevel = harness.CheckVerify
	paramSize = 16
}

func TestHarnessConfigFromFlags(t *testing.T) {
	useHostFlags(t)
	binaryMode = true
	defer func() { binaryMode = false }()

	cfg := harnessConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Mode != harness.ModeBinary {
		t.Errorf("Mode = %v, want binary", cfg.Mode)
	}
	if cfg.Backend != "host" || cfg.Selection != (harness.Selection{}) {
		t.Errorf("Unexpected defaults: backend %q selection %v", cfg.Backend, cfg.Selection)
	}
	if !cfg.OffsetSupported {
		t.Error("OffsetSupported should default to true")
	}
}

func TestRunWorkload_UnknownWorkload(t *testing.T) {
	useHostFlags(t)

	err := runWorkload(nil, []string{"fft"})
	if !errors.Is(err, workloads.ErrUnknownWorkload) {
		t.Errorf("Expected ErrUnknownWorkload, got %v", err)
	}
}

func TestRunWorkload_Record(t *testing.T) {
	useHostFlags(t)
	recordRun = true

	if err := runWorkload(nil, []string{"nbody"}); err != nil {
		t.Fatalf("runWorkload failed: %v", err)
	}

	st, err := store.NewFSStore(dataDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	infos, err := st.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected 1 recorded run, got %d", len(infos))
	}
	if infos[0].Workload != "nbody" || infos[0].Status() != "success" {
		t.Errorf("Unexpected record: %+v", infos[0])
	}
}

func TestRunWorkload_BadSelection(t *testing.T) {
	useHostFlags(t)
	deviceIndex = 3
	defer func() { deviceIndex = 0 }()

	err := runWorkload(nil, []string{"binomial"})
	if !errors.Is(err, harness.ErrInvalidSelection) {
		t.Errorf("Expected ErrInvalidSelection, got %v", err)
	}
}

func TestRunSuite(t *testing.T) {
	useHostFlags(t)
	suiteRepeat = 2
	defer func() { suiteRepeat = 3 }()

	if err := runSuite(nil, []string{"binomial", "gaussian"}); err != nil {
		t.Fatalf("runSuite failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dataDir, "suites"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 suite directory, got %d", len(entries))
	}
}

func TestRunDevices(t *testing.T) {
	if err := runDevices(nil, nil); err != nil {
		t.Errorf("runDevices failed: %v", err)
	}

	devicesBackend = "fpga"
	defer func() { devicesBackend = "host" }()
	if err := runDevices(nil, nil); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
