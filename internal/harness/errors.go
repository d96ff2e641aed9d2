package harness

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSelection matches any *InvalidSelectionError.
	ErrInvalidSelection = errors.New("invalid device selection")
	// ErrBuildFailure matches any *BuildFailureError.
	ErrBuildFailure = errors.New("program build failed")
	// ErrNoBinary is returned when a binary build is requested before the
	// program was primed for the device.
	ErrNoBinary = errors.New("no cached program binary")
)

// InvalidSelectionError reports a platform or device index outside the
// enumerated range. Last is -1 when nothing was enumerated.
type InvalidSelectionError struct {
	What  string
	Index int
	Last  int
}

func (e *InvalidSelectionError) Error() string {
	if e.Last < 0 {
		return fmt.Sprintf("invalid %s index %d: no %ss available", e.What, e.Index, e.What)
	}
	return fmt.Sprintf("invalid %s index %d: valid range is [0, %d]", e.What, e.Index, e.Last)
}

func (e *InvalidSelectionError) Is(target error) bool {
	return target == ErrInvalidSelection
}

// BuildFailureError carries the compiler log of a failed program build.
type BuildFailureError struct {
	Program string
	Kernel  string
	Mode    ProgramMode
	Log     string
	Err     error
}

func (e *BuildFailureError) Error() string {
	return fmt.Sprintf("build %s (%s, kernel %s): %v", e.Program, e.Mode, e.Kernel, e.Err)
}

func (e *BuildFailureError) Unwrap() error { return e.Err }

func (e *BuildFailureError) Is(target error) bool {
	return target == ErrBuildFailure
}

// labelled wraps err with the human-readable label of the failing call.
func labelled(label string, err error) error {
	return fmt.Errorf("%s: %w", label, err)
}
