// Package suite runs several workloads repeatedly against one device and
// summarizes their timings.
//
// All runs of a suite share a single harness and therefore a single program
// cache, so in binary mode each workload compiles from source exactly once.
package suite

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/clbench/internal/harness"
	"github.com/cwbudde/clbench/internal/store"
	"github.com/cwbudde/clbench/internal/workloads"
)

// Options select what a suite runs.
type Options struct {
	// Workloads to run in order. Empty means every registered workload.
	Workloads []string
	// Repeat is the number of runs per workload.
	Repeat int
	// Params are passed to every workload; Size 0 selects each default.
	Params workloads.Params
}

func (o Options) Validate() error {
	if o.Repeat <= 0 {
		return fmt.Errorf("repeat must be positive, got %d", o.Repeat)
	}
	for _, name := range o.Workloads {
		if _, err := workloads.Lookup(name); err != nil {
			return err
		}
	}
	return nil
}

// Runner drives suites through one harness.
type Runner struct {
	h     *harness.Harness
	store *store.FSStore
}

// NewRunner wraps h. st may be nil, in which case nothing is persisted.
func NewRunner(h *harness.Harness, st *store.FSStore) *Runner {
	return &Runner{h: h, store: st}
}

// Outcome is the result of a suite.
type Outcome struct {
	Summary *store.SuiteSummary
	Records []*store.RunRecord
}

// Failures is the number of runs whose verification failed.
func (o *Outcome) Failures() int {
	n := 0
	for _, st := range o.Summary.Stats {
		n += st.Failures
	}
	return n
}

// Run executes every workload opts.Repeat times. Verification failures are
// recorded and the suite continues; a fatal run error stops the suite and is
// returned together with the outcome collected so far.
func (r *Runner) Run(opts Options) (*Outcome, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	names := opts.Workloads
	if len(names) == 0 {
		names = workloads.Names()
	}

	suiteID := uuid.New().String()
	cfg := r.h.Config()
	backend := r.h.Runtime().Name()

	slog.Info("Suite starting",
		"suite_id", suiteID,
		"workloads", names,
		"repeat", opts.Repeat,
		"backend", backend,
		"program_type", cfg.Mode.String(),
	)

	var trace *store.TraceWriter
	if r.store != nil {
		var err error
		trace, err = store.NewTraceWriter(r.store.BaseDir(), suiteID, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open suite trace: %w", err)
		}
		defer func() {
			if err := trace.Close(); err != nil {
				slog.Warn("Failed to close suite trace", "suite_id", suiteID, "error", err)
			}
		}()
	}

	out := &Outcome{
		Summary: &store.SuiteSummary{
			SuiteID: suiteID,
			Backend: backend,
			Repeat:  opts.Repeat,
		},
	}

	var runErr error
	seq := 0
	for _, name := range names {
		for rep := 0; rep < opts.Repeat && runErr == nil; rep++ {
			rec, err := r.runOnce(name, opts.Params, suiteID)
			entry := store.TraceEntry{Sequence: seq, Repeat: rep, Workload: name, Timestamp: time.Now()}
			seq++

			if err != nil {
				runErr = fmt.Errorf("%s run %d: %w", name, rep, err)
				entry.Error = err.Error()
			} else {
				out.Records = append(out.Records, rec)
				out.Summary.RunIDs = append(out.Summary.RunIDs, rec.RunID)
				out.Summary.Device = rec.Device
				entry.RunID = rec.RunID
				entry.ElapsedMS = rec.ElapsedMS
				entry.Verified = rec.Verified
				entry.Passed = rec.Passed
			}

			if trace != nil {
				if err := trace.Write(entry); err != nil {
					slog.Warn("Failed to write trace entry", "suite_id", suiteID, "error", err)
				}
			}
		}
		if runErr != nil {
			break
		}
	}

	out.Summary.Stats = Summarize(out.Records)
	out.Summary.Timestamp = time.Now()

	if r.store != nil && len(out.Records) > 0 {
		if err := r.store.SaveSuite(out.Summary); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	slog.Info("Suite finished",
		"suite_id", suiteID,
		"runs", len(out.Records),
		"failures", out.Failures(),
		"error", runErr,
	)
	return out, runErr
}

func (r *Runner) runOnce(name string, params workloads.Params, suiteID string) (*store.RunRecord, error) {
	task, err := workloads.Prepare(name, params)
	if err != nil {
		return nil, err
	}

	res, err := r.h.Run(task)
	if err != nil {
		return nil, err
	}

	rec := NewRecord(res, r.h.Config(), r.h.Runtime().Name(), suiteID)
	if r.store != nil {
		if err := Persist(r.store, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
