package suite

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/clbench/internal/harness"
	"github.com/cwbudde/clbench/internal/store"
)

// NewRecord converts a harness result into its persisted form.
func NewRecord(res *harness.Result, cfg harness.Config, backend, suiteID string) *store.RunRecord {
	rec := &store.RunRecord{
		RunID:         res.RunID,
		SuiteID:       suiteID,
		Workload:      res.Dispatch.Workload,
		Kernel:        res.Dispatch.Kernel,
		Backend:       backend,
		Platform:      res.Dispatch.PlatformName,
		Device:        res.Dispatch.DeviceName,
		ProgramType:   res.Dispatch.Mode.String(),
		CheckLevel:    cfg.CheckLevel,
		GlobalSize:    res.Dispatch.Shape.Global,
		LocalSize:     res.Dispatch.Shape.Local,
		ElapsedMS:     float64(res.Dispatch.Elapsed) / float64(time.Millisecond),
		Passed:        true,
		MismatchIndex: -1,
		ArtifactPath:  res.ArtifactPath,
		SchedulerTag:  res.SchedulerTag,
		ChunkHint:     res.ChunkHint,
		Params:        res.Params,
		Timestamp:     time.Now(),
	}
	if v := res.Verification; v != nil {
		rec.Verified = true
		rec.Passed = v.Pass
		rec.MismatchIndex = v.Index
		rec.Got = v.Got
		rec.Want = v.Want
		rec.Tolerance = v.Tolerance.String()
	}
	return rec
}

// Persist saves rec and copies its bitmap artifact, if any, next to it.
func Persist(st *store.FSStore, rec *store.RunRecord) error {
	if err := st.SaveRun(rec); err != nil {
		return err
	}
	if rec.ArtifactPath == "" {
		return nil
	}

	dst := filepath.Join(st.RunDir(rec.RunID), filepath.Base(rec.ArtifactPath))
	if err := copyFile(rec.ArtifactPath, dst); err != nil {
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	slog.Debug("Artifact stored", "run_id", rec.RunID, "path", dst)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
