package harness

import (
	"errors"
	"fmt"
)

// Task describes one workload run. Workloads fill in only what varies: the
// program and kernel names, buffers, work shape, argument binding, the
// reference check and the optional image artifact.
type Task struct {
	Workload string
	// Program is the source file base name under the kernels root.
	Program string
	Kernel  string
	Buffers []BufferSpec
	Shape   WorkShape
	Bind    Binder

	// Output flattens the downloaded buffers into comparable values.
	Output func() []float64
	// Reference recomputes the expected values on the CPU.
	Reference func() []float64
	Tolerance Tolerance

	// Artifact writes a bitmap of the output at check level 2. Nil when the
	// workload has no image form.
	Artifact func(path string) error

	// Params is recorded with the result for reporting.
	Params map[string]any
}

func (t *Task) Validate() error {
	var errs []error
	if t.Workload == "" {
		errs = append(errs, errors.New("workload name is empty"))
	}
	if t.Program == "" {
		errs = append(errs, errors.New("program name is empty"))
	}
	if t.Kernel == "" {
		errs = append(errs, errors.New("kernel name is empty"))
	}
	if len(t.Buffers) == 0 {
		errs = append(errs, errors.New("no buffers"))
	}
	if t.Bind == nil {
		errs = append(errs, errors.New("no argument binder"))
	}
	if err := t.Shape.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid task %q: %w", t.Workload, errors.Join(errs...))
	}
	return nil
}

// canVerify reports whether the task supplies both sides of a comparison.
func (t *Task) canVerify() bool {
	return t.Output != nil && t.Reference != nil
}
