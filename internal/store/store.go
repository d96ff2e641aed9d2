// Package store persists benchmark run records and suite summaries.
package store

// Store defines the interface for run record persistence.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the record doesn't exist (for Load/Delete)
//   - Return descriptive errors for I/O, serialization, or validation failures
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun atomically saves one run record, overwriting any record with
	// the same RunID. The record is validated first.
	SaveRun(rec *RunRecord) error

	// LoadRun retrieves the record for runID.
	// Returns ErrNotFound if no record exists.
	LoadRun(runID string) (*RunRecord, error)

	// ListRuns returns metadata for all stored runs, oldest first.
	// The returned slice may be empty.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the run directory and everything in it, including
	// a copied bitmap artifact.
	// Returns ErrNotFound if no record exists.
	DeleteRun(runID string) error

	// SaveSuite atomically saves a suite summary.
	SaveSuite(summary *SuiteSummary) error

	// LoadSuite retrieves a suite summary.
	// Returns ErrNotFound if no summary exists.
	LoadSuite(suiteID string) (*SuiteSummary, error)

	// DeleteSuite removes a suite's summary and trace.
	// Returns ErrNotFound if the suite directory does not exist.
	DeleteSuite(suiteID string) error
}

// ErrNotFound is returned when a requested record does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run or suite.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "record not found: " + e.ID
	}
	return "record not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
