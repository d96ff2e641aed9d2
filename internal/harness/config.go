// Package harness runs one compute task end to end: device selection,
// program build, buffer staging, dispatch, read-back, timing and
// verification.
package harness

import (
	"fmt"
	"io"
	"os"
)

// Selection names a device by platform and device index.
type Selection struct {
	Platform int
	Device   int
}

func (s Selection) String() string {
	return fmt.Sprintf("%d:%d", s.Platform, s.Device)
}

// Check levels.
const (
	CheckNone     = 0
	CheckVerify   = 1
	CheckArtifact = 2
)

// Config carries the per-invocation harness settings.
type Config struct {
	// Backend is the accelerator backend name ("host" or "opencl").
	Backend   string
	Selection Selection
	// KernelsRoot is the directory holding <program>.cl sources.
	KernelsRoot string
	Mode        ProgramMode
	CheckLevel  int
	// ArtifactDir receives <workload>_base.bmp at check level 2.
	ArtifactDir string
	// SchedulerTag and ChunkHint are accepted for compatibility and
	// recorded with the result; neither affects dispatch.
	SchedulerTag string
	ChunkHint    int
	// OffsetSupported sets ECL_KERNEL_GLOBAL_WORK_OFFSET_SUPPORTED.
	OffsetSupported bool
	// Report receives the line-oriented run summary.
	Report io.Writer
}

// DefaultConfig returns the settings used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Backend:         "host",
		KernelsRoot:     "support/kernels",
		Mode:            ModeSource,
		ArtifactDir:     ".",
		OffsetSupported: true,
		Report:          os.Stdout,
	}
}

// Validate checks the fields that can be rejected before any device work.
func (c Config) Validate() error {
	if c.CheckLevel < CheckNone || c.CheckLevel > CheckArtifact {
		return fmt.Errorf("check level %d out of range [0, 2]", c.CheckLevel)
	}
	if c.Mode != ModeSource && c.Mode != ModeBinary {
		return fmt.Errorf("unknown program mode %d", int(c.Mode))
	}
	if c.KernelsRoot == "" {
		return fmt.Errorf("kernels root cannot be empty")
	}
	return nil
}
