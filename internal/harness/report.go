package harness

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DispatchResult records what ran where and how long it took.
type DispatchResult struct {
	Workload     string
	Kernel       string
	Mode         ProgramMode
	PlatformName string
	DeviceName   string
	Elapsed      time.Duration
	Shape        WorkShape
}

// Reporter writes the line-oriented run summary.
type Reporter struct {
	w io.Writer
}

func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = io.Discard
	}
	return &Reporter{w: w}
}

// Dispatch writes the timing and identification lines.
func (r *Reporter) Dispatch(res DispatchResult) {
	fmt.Fprintf(r.w, "time: %d\n", res.Elapsed.Milliseconds())
	fmt.Fprintf(r.w, "Selected platform: %s\n", res.PlatformName)
	fmt.Fprintf(r.w, "Selected device: %s\n", res.DeviceName)
	fmt.Fprintf(r.w, "program type: %s\n", res.Mode)
	fmt.Fprintf(r.w, "kernel: %s\n", res.Kernel)

	slog.Info("Kernel dispatched",
		"workload", res.Workload,
		"kernel", res.Kernel,
		"platform", res.PlatformName,
		"device", res.DeviceName,
		"program_type", res.Mode.String(),
		"global", res.Shape.Global,
		"local", res.Shape.Local,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
}

// Done terminates an unchecked report.
func (r *Reporter) Done() {
	fmt.Fprintln(r.w, "Done")
}

// Verdict terminates a checked report.
func (r *Reporter) Verdict(outcome VerificationOutcome, elapsed time.Duration) {
	ms := elapsed.Milliseconds()
	if outcome.Pass {
		fmt.Fprintf(r.w, "success (%d ms)\n", ms)
		slog.Info("Verification passed", "tolerance", outcome.Tolerance.String(), "elapsed_ms", ms)
		return
	}
	fmt.Fprintf(r.w, "failure (%d ms)\n", ms)
	slog.Warn("Verification failed",
		"index", outcome.Index,
		"got", outcome.Got,
		"want", outcome.Want,
		"tolerance", outcome.Tolerance.String(),
		"elapsed_ms", ms,
	)
}

// Artifact notes an image written at check level 2.
func (r *Reporter) Artifact(workload, path string) {
	fmt.Fprintf(r.w, "writing %s_base.bmp (%s)\n", workload, path)
}
