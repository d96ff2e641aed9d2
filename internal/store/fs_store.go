package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FSStore implements the Store interface using filesystem-based persistence.
// Layout:
//
//	<baseDir>/runs/<runID>/run.json
//	<baseDir>/suites/<suiteID>/summary.json
//	<baseDir>/suites/<suiteID>/trace.jsonl
//
// Writes go through a temp file and rename, so a crashed run never leaves a
// half-written record behind.
type FSStore struct {
	baseDir string // Root directory for all results (e.g., "./data")
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

// RunDir returns the directory path for a given run ID.
func (fs *FSStore) RunDir(runID string) string {
	return filepath.Join(fs.baseDir, "runs", runID)
}

func (fs *FSStore) runPath(runID string) string {
	return filepath.Join(fs.RunDir(runID), "run.json")
}

// SuiteDir returns the directory path for a given suite ID.
func (fs *FSStore) SuiteDir(suiteID string) string {
	return filepath.Join(fs.baseDir, "suites", suiteID)
}

func (fs *FSStore) suitePath(suiteID string) string {
	return filepath.Join(fs.SuiteDir(suiteID), "summary.json")
}

// writeJSONAtomic serializes v to path via a temp file and rename.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// readJSON loads path into v, mapping a missing file to NotFoundError{id}.
func readJSON(path, id string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to deserialize %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveRun atomically saves a run record.
func (fs *FSStore) SaveRun(rec *RunRecord) error {
	if rec == nil {
		return fmt.Errorf("run record cannot be nil")
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	path := fs.runPath(rec.RunID)
	if err := writeJSONAtomic(path, rec); err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.RunID, err)
	}

	slog.Debug("Run saved", "run_id", rec.RunID, "path", path)
	return nil
}

// LoadRun retrieves the record for the given run.
func (fs *FSStore) LoadRun(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	var rec RunRecord
	if err := readJSON(fs.runPath(runID), runID, &rec); err != nil {
		return nil, err
	}

	slog.Debug("Run loaded", "run_id", runID)
	return &rec, nil
}

// ListRuns returns metadata for all stored runs, oldest first.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		runID := entry.Name()
		if _, err := os.Stat(fs.runPath(runID)); os.IsNotExist(err) {
			continue // Skip directories without run.json
		}

		rec, err := fs.LoadRun(runID)
		if err != nil {
			slog.Warn("Failed to load run for listing", "run_id", runID, "error", err)
			continue
		}
		infos = append(infos, rec.ToInfo())
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})

	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the run directory and all of its contents.
func (fs *FSStore) DeleteRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	dir := fs.RunDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "run_id", runID, "path", dir)
	return nil
}

// SaveSuite atomically saves a suite summary.
func (fs *FSStore) SaveSuite(summary *SuiteSummary) error {
	if summary == nil {
		return fmt.Errorf("suite summary cannot be nil")
	}
	if err := summary.Validate(); err != nil {
		return err
	}

	path := fs.suitePath(summary.SuiteID)
	if err := writeJSONAtomic(path, summary); err != nil {
		return fmt.Errorf("failed to save suite %s: %w", summary.SuiteID, err)
	}

	slog.Debug("Suite saved", "suite_id", summary.SuiteID, "path", path)
	return nil
}

// LoadSuite retrieves a suite summary.
func (fs *FSStore) LoadSuite(suiteID string) (*SuiteSummary, error) {
	if suiteID == "" {
		return nil, fmt.Errorf("suiteID cannot be empty")
	}

	var summary SuiteSummary
	if err := readJSON(fs.suitePath(suiteID), suiteID, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// DeleteSuite removes the summary and trace of suiteID and then its
// directory. Run records of the suite are not touched.
func (fs *FSStore) DeleteSuite(suiteID string) error {
	if suiteID == "" {
		return fmt.Errorf("suiteID cannot be empty")
	}

	dir := fs.SuiteDir(suiteID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: suiteID}
	} else if err != nil {
		return fmt.Errorf("failed to stat suite directory: %w", err)
	}

	if err := DeleteTrace(fs.baseDir, suiteID); err != nil {
		return err
	}
	if err := os.Remove(fs.suitePath(suiteID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete suite summary: %w", err)
	}
	// Remove fails on anything this store did not write.
	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("failed to remove suite directory: %w", err)
	}

	slog.Debug("Suite deleted", "suite_id", suiteID, "path", dir)
	return nil
}
