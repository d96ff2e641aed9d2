package store

import (
	"fmt"
	"time"
)

// RunRecord is the persisted form of one harness run.
// It is a copy of the harness result so that store does not depend on the
// harness package.
type RunRecord struct {
	// RunID is the unique identifier for this run
	RunID string `json:"runId"`

	// SuiteID groups runs made by one suite invocation (empty for single runs)
	SuiteID string `json:"suiteId,omitempty"`

	Workload    string `json:"workload"`
	Kernel      string `json:"kernel"`
	Backend     string `json:"backend"`
	Platform    string `json:"platform"`
	Device      string `json:"device"`
	ProgramType string `json:"programType"` // source or binary

	// CheckLevel is 0 (none), 1 (verify) or 2 (verify and write bitmap)
	CheckLevel int `json:"checkLevel"`

	GlobalSize int `json:"globalSize"`
	LocalSize  int `json:"localSize"`

	// ElapsedMS is the timed region in milliseconds
	ElapsedMS float64 `json:"elapsedMs"`

	// Verified is false at check level 0; Passed is then always true
	Verified      bool    `json:"verified"`
	Passed        bool    `json:"passed"`
	MismatchIndex int     `json:"mismatchIndex"`
	Got           float64 `json:"got,omitempty"`
	Want          float64 `json:"want,omitempty"`
	Tolerance     string  `json:"tolerance,omitempty"`

	ArtifactPath string `json:"artifactPath,omitempty"`

	// SchedulerTag and ChunkHint are recorded as given; they do not affect dispatch
	SchedulerTag string `json:"schedulerTag,omitempty"`
	ChunkHint    int    `json:"chunkHint,omitempty"`

	// Params are the workload parameters (sizes, seed, scene, ...)
	Params map[string]any `json:"params,omitempty"`

	// Timestamp records when the run finished
	Timestamp time.Time `json:"timestamp"`
}

// RunInfo contains run metadata without parameters.
// Used for listing runs without loading full records.
type RunInfo struct {
	RunID     string    `json:"runId"`
	SuiteID   string    `json:"suiteId,omitempty"`
	Workload  string    `json:"workload"`
	Device    string    `json:"device"`
	ElapsedMS float64   `json:"elapsedMs"`
	Verified  bool      `json:"verified"`
	Passed    bool      `json:"passed"`
	Timestamp time.Time `json:"timestamp"`
}

// ToInfo converts a full RunRecord to RunInfo (metadata only).
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		RunID:     r.RunID,
		SuiteID:   r.SuiteID,
		Workload:  r.Workload,
		Device:    r.Device,
		ElapsedMS: r.ElapsedMS,
		Verified:  r.Verified,
		Passed:    r.Passed,
		Timestamp: r.Timestamp,
	}
}

// Status is a short verdict for listings.
func (i RunInfo) Status() string {
	switch {
	case !i.Verified:
		return "unchecked"
	case i.Passed:
		return "success"
	default:
		return "failure"
	}
}

// Validate checks if the record has valid data.
func (r *RunRecord) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if r.Workload == "" {
		return &ValidationError{Field: "Workload", Reason: "cannot be empty"}
	}
	if r.Kernel == "" {
		return &ValidationError{Field: "Kernel", Reason: "cannot be empty"}
	}
	if r.ProgramType != "source" && r.ProgramType != "binary" {
		return &ValidationError{Field: "ProgramType", Reason: fmt.Sprintf("unknown value %q", r.ProgramType)}
	}
	if r.CheckLevel < 0 || r.CheckLevel > 2 {
		return &ValidationError{Field: "CheckLevel", Reason: "must be 0, 1 or 2"}
	}
	if r.LocalSize <= 0 {
		return &ValidationError{Field: "LocalSize", Reason: "must be positive"}
	}
	if r.GlobalSize <= 0 || r.GlobalSize%r.LocalSize != 0 {
		return &ValidationError{Field: "GlobalSize", Reason: "must be a positive multiple of LocalSize"}
	}
	if r.ElapsedMS < 0 {
		return &ValidationError{Field: "ElapsedMS", Reason: "cannot be negative"}
	}
	if r.Verified != (r.CheckLevel > 0) {
		return &ValidationError{Field: "Verified", Reason: "must match CheckLevel"}
	}
	if !r.Verified && !r.Passed {
		return &ValidationError{Field: "Passed", Reason: "unchecked runs cannot fail"}
	}
	if r.Passed && r.MismatchIndex != -1 {
		return &ValidationError{Field: "MismatchIndex", Reason: "must be -1 for passing runs"}
	}
	if !r.Passed && r.MismatchIndex < 0 {
		return &ValidationError{Field: "MismatchIndex", Reason: "must point at the first divergent element"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// WorkloadStats summarizes the repeats of one workload in a suite.
type WorkloadStats struct {
	Workload string  `json:"workload"`
	Runs     int     `json:"runs"`
	Failures int     `json:"failures"`
	MeanMS   float64 `json:"meanMs"`
	StdDevMS float64 `json:"stdDevMs"`
	MinMS    float64 `json:"minMs"`
	MaxMS    float64 `json:"maxMs"`
}

// SuiteSummary is the persisted outcome of a suite invocation.
type SuiteSummary struct {
	SuiteID   string          `json:"suiteId"`
	Backend   string          `json:"backend"`
	Device    string          `json:"device"`
	Repeat    int             `json:"repeat"`
	RunIDs    []string        `json:"runIds"`
	Stats     []WorkloadStats `json:"stats"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate checks if the summary has valid data.
func (s *SuiteSummary) Validate() error {
	if s.SuiteID == "" {
		return &ValidationError{Field: "SuiteID", Reason: "cannot be empty"}
	}
	if s.Repeat <= 0 {
		return &ValidationError{Field: "Repeat", Reason: "must be positive"}
	}
	if s.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	total := 0
	for _, st := range s.Stats {
		if st.Workload == "" {
			return &ValidationError{Field: "Stats.Workload", Reason: "cannot be empty"}
		}
		if st.Failures > st.Runs {
			return &ValidationError{Field: "Stats.Failures", Reason: fmt.Sprintf("%d failures exceed %d runs", st.Failures, st.Runs)}
		}
		total += st.Runs
	}
	if total != len(s.RunIDs) {
		return &ValidationError{
			Field:  "RunIDs",
			Reason: fmt.Sprintf("length mismatch: stats count %d runs, have %d ids", total, len(s.RunIDs)),
		}
	}
	return nil
}
