package harness

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/clbench/internal/accel"
)

// Result is the outcome of one Run.
type Result struct {
	RunID    string
	Dispatch DispatchResult
	// Verification is nil at check level 0.
	Verification *VerificationOutcome
	ArtifactPath string
	SchedulerTag string
	ChunkHint    int
	Params       map[string]any
}

// Passed is true when the run was not verified or verification passed.
func (r *Result) Passed() bool {
	return r.Verification == nil || r.Verification.Pass
}

// Harness executes tasks against one runtime and program cache.
type Harness struct {
	cfg    Config
	rt     accel.Runtime
	cache  *ProgramCache
	report *Reporter
}

// New opens the configured backend and creates a fresh program cache.
func New(cfg Config) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rt, err := accel.Open(cfg.Backend)
	if err != nil {
		return nil, err
	}
	return NewWithRuntime(cfg, rt, nil)
}

// NewWithRuntime uses rt and shares cache between harnesses when non-nil.
func NewWithRuntime(cfg Config, rt accel.Runtime, cache *ProgramCache) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = NewProgramCache(DirLoader{Root: cfg.KernelsRoot}, cfg.OffsetSupported)
	}
	return &Harness{
		cfg:    cfg,
		rt:     rt,
		cache:  cache,
		report: NewReporter(cfg.Report),
	}, nil
}

func (h *Harness) Config() Config { return h.cfg }

func (h *Harness) Runtime() accel.Runtime { return h.rt }

// Cache returns the program cache, shared with other harnesses if one was
// passed to NewWithRuntime.
func (h *Harness) Cache() *ProgramCache { return h.cache }

// Run executes task once. Fatal errors abort with a labelled error; a
// verification mismatch is reported in the Result and does not return an
// error.
func (h *Harness) Run(task *Task) (*Result, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Task starting",
		"workload", task.Workload,
		"backend", h.rt.Name(),
		"selection", h.cfg.Selection.String(),
		"program_type", h.cfg.Mode.String(),
		"check", h.cfg.CheckLevel,
	)

	// Binary mode compiles once outside the timed region.
	if h.cfg.Mode == ModeBinary {
		if err := h.cache.Prime(h.rt, h.cfg.Selection, task.Program, task.Kernel); err != nil {
			return nil, err
		}
	}

	start := time.Now()

	handle, err := Select(h.rt, h.cfg.Selection)
	if err != nil {
		return nil, err
	}

	sess, err := Open(handle)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	stager := NewStager(sess)
	defer stager.Release()

	if err := stager.StageAll(task.Buffers); err != nil {
		return nil, err
	}

	artifact, err := h.cache.Obtain(sess, task.Program, task.Kernel, h.cfg.Mode)
	if err != nil {
		return nil, err
	}
	defer artifact.Release()

	if err := Bind(artifact.Handle(), stager, task.Bind); err != nil {
		return nil, err
	}
	if err := Submit(sess.Queue, artifact.Handle(), task.Shape); err != nil {
		return nil, err
	}
	if err := stager.DownloadAll(task.Buffers); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)

	res := &Result{
		RunID: uuid.New().String(),
		Dispatch: DispatchResult{
			Workload:     task.Workload,
			Kernel:       task.Kernel,
			Mode:         h.cfg.Mode,
			PlatformName: handle.Platform.Name,
			DeviceName:   handle.Device.Name,
			Elapsed:      elapsed,
			Shape:        task.Shape,
		},
		SchedulerTag: h.cfg.SchedulerTag,
		ChunkHint:    h.cfg.ChunkHint,
		Params:       task.Params,
	}
	h.report.Dispatch(res.Dispatch)

	if h.cfg.CheckLevel == CheckNone {
		h.report.Done()
		return res, nil
	}

	if !task.canVerify() {
		return res, fmt.Errorf("workload %s has no reference check", task.Workload)
	}
	outcome := Verify(task.Output(), task.Reference(), task.Tolerance)
	res.Verification = &outcome

	h.report.Verdict(outcome, elapsed)

	if h.cfg.CheckLevel == CheckArtifact && task.Artifact != nil {
		path := filepath.Join(h.cfg.ArtifactDir, task.Workload+"_base.bmp")
		if err := task.Artifact(path); err != nil {
			return res, labelled("write artifact", err)
		}
		h.report.Artifact(task.Workload, path)
		res.ArtifactPath = path
	}
	return res, nil
}
