package suite

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clbench/internal/harness"
	"github.com/cwbudde/clbench/internal/store"
	"github.com/cwbudde/clbench/internal/workloads"
)

const kernelsRoot = "../../support/kernels"

func newRunner(t *testing.T, mutate func(*harness.Config)) (*Runner, *store.FSStore) {
	t.Helper()
	cfg := harness.DefaultConfig()
	cfg.KernelsRoot = kernelsRoot
	cfg.CheckLevel = harness.CheckVerify
	cfg.ArtifactDir = t.TempDir()
	cfg.Report = io.Discard
	if mutate != nil {
		mutate(&cfg)
	}
	h, err := harness.New(cfg)
	require.NoError(t, err)

	st, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return NewRunner(h, st), st
}

func TestSummarize(t *testing.T) {
	recs := []*store.RunRecord{
		{Workload: "nbody", ElapsedMS: 2, Passed: true},
		{Workload: "binomial", ElapsedMS: 10, Passed: true},
		{Workload: "nbody", ElapsedMS: 4, Passed: false},
		{Workload: "nbody", ElapsedMS: 6, Passed: true},
	}
	stats := Summarize(recs)
	require.Len(t, stats, 2)

	nb := stats[0]
	assert.Equal(t, "nbody", nb.Workload)
	assert.Equal(t, 3, nb.Runs)
	assert.Equal(t, 1, nb.Failures)
	assert.InDelta(t, 4.0, nb.MeanMS, 1e-12)
	assert.InDelta(t, 2.0, nb.StdDevMS, 1e-12)
	assert.Equal(t, 2.0, nb.MinMS)
	assert.Equal(t, 6.0, nb.MaxMS)

	single := stats[1]
	assert.Equal(t, "binomial", single.Workload)
	assert.Equal(t, 10.0, single.MeanMS)
	assert.Zero(t, single.StdDevMS)

	assert.Empty(t, Summarize(nil))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	err := PrintTable(&buf, &store.SuiteSummary{Stats: []store.WorkloadStats{
		{Workload: "ray", Runs: 3, MeanMS: 1.5, StdDevMS: 0.25, MinMS: 1, MaxMS: 2},
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "WORKLOAD"))
	assert.Contains(t, lines[2], "ray")
	assert.Contains(t, lines[2], "1.500")
	assert.Contains(t, lines[2], "0.250")
}

func TestNewRecord(t *testing.T) {
	cfg := harness.DefaultConfig()
	cfg.CheckLevel = harness.CheckVerify
	res := &harness.Result{
		RunID: "r1",
		Dispatch: harness.DispatchResult{
			Workload:     "nbody",
			Kernel:       "nbody_sim",
			Mode:         harness.ModeBinary,
			PlatformName: "P",
			DeviceName:   "D",
			Elapsed:      1500 * time.Microsecond,
			Shape:        harness.WorkShape{Global: 128, Local: 64},
		},
		Verification: &harness.VerificationOutcome{
			Pass:      false,
			Index:     5,
			Got:       1.5,
			Want:      1,
			Tolerance: harness.Tolerance{Threshold: 0.001, Comparison: harness.Relative},
		},
		SchedulerTag: "static",
		ChunkHint:    8,
	}

	rec := NewRecord(res, cfg, "host", "s1")
	require.NoError(t, rec.Validate())
	assert.Equal(t, "binary", rec.ProgramType)
	assert.Equal(t, 1.5, rec.ElapsedMS)
	assert.True(t, rec.Verified)
	assert.False(t, rec.Passed)
	assert.Equal(t, 5, rec.MismatchIndex)
	assert.Equal(t, "s1", rec.SuiteID)
	assert.Equal(t, "static", rec.SchedulerTag)

	cfg.CheckLevel = harness.CheckNone
	res.Verification = nil
	rec = NewRecord(res, cfg, "host", "")
	require.NoError(t, rec.Validate())
	assert.False(t, rec.Verified)
	assert.True(t, rec.Passed)
	assert.Equal(t, -1, rec.MismatchIndex)
}

func TestOptionsValidate(t *testing.T) {
	assert.Error(t, Options{Repeat: 0}.Validate())
	err := Options{Repeat: 1, Workloads: []string{"fft"}}.Validate()
	assert.ErrorIs(t, err, workloads.ErrUnknownWorkload)
	assert.NoError(t, Options{Repeat: 1, Workloads: []string{"ray"}}.Validate())
}

func TestRunner_Run(t *testing.T) {
	r, st := newRunner(t, nil)

	out, err := r.Run(Options{
		Workloads: []string{"binomial", "nbody"},
		Repeat:    2,
		Params:    workloads.Params{Size: 16},
	})
	require.NoError(t, err)
	require.Len(t, out.Records, 4)
	assert.Zero(t, out.Failures())

	sum := out.Summary
	require.Len(t, sum.Stats, 2)
	assert.Equal(t, "binomial", sum.Stats[0].Workload)
	assert.Equal(t, 2, sum.Stats[0].Runs)
	assert.Len(t, sum.RunIDs, 4)
	assert.Equal(t, "host", sum.Backend)

	for _, rec := range out.Records {
		assert.Equal(t, sum.SuiteID, rec.SuiteID)
		loaded, err := st.LoadRun(rec.RunID)
		require.NoError(t, err)
		assert.True(t, loaded.Passed)
	}

	saved, err := st.LoadSuite(sum.SuiteID)
	require.NoError(t, err)
	assert.Equal(t, sum.RunIDs, saved.RunIDs)

	reader, err := store.NewTraceReader(st.BaseDir(), sum.SuiteID)
	require.NoError(t, err)
	defer reader.Close()
	entries, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, i, e.Sequence)
		assert.Equal(t, i%2, e.Repeat)
		assert.Empty(t, e.Error)
	}
}

func TestRunner_BinaryModeCompilesOncePerWorkload(t *testing.T) {
	r, _ := newRunner(t, func(c *harness.Config) { c.Mode = harness.ModeBinary })

	_, err := r.Run(Options{
		Workloads: []string{"binomial", "nbody"},
		Repeat:    3,
		Params:    workloads.Params{Size: 16},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.h.Cache().SourceBuilds())
	assert.Equal(t, 6, r.h.Cache().BinaryBuilds())
}

func TestRunner_FatalErrorStopsSuite(t *testing.T) {
	r, st := newRunner(t, func(c *harness.Config) { c.KernelsRoot = t.TempDir() })

	out, err := r.Run(Options{Workloads: []string{"binomial", "nbody"}, Repeat: 2})
	require.ErrorIs(t, err, harness.ErrBuildFailure)
	require.NotNil(t, out)
	assert.Empty(t, out.Records)

	infos, err := st.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, infos)

	reader, err := store.NewTraceReader(st.BaseDir(), out.Summary.SuiteID)
	require.NoError(t, err)
	defer reader.Close()
	entries, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].Error)
}

func TestRunner_PersistsArtifacts(t *testing.T) {
	r, st := newRunner(t, func(c *harness.Config) { c.CheckLevel = harness.CheckArtifact })

	out, err := r.Run(Options{
		Workloads: []string{"gaussian"},
		Repeat:    1,
		Params:    workloads.Params{Size: 8},
	})
	require.NoError(t, err)
	require.Len(t, out.Records, 1)

	rec := out.Records[0]
	require.NotEmpty(t, rec.ArtifactPath)
	_, err = os.Stat(filepath.Join(st.RunDir(rec.RunID), "gaussian_base.bmp"))
	assert.NoError(t, err)
}

func TestRunner_WithoutStore(t *testing.T) {
	r, _ := newRunner(t, nil)
	r.store = nil

	out, err := r.Run(Options{Workloads: []string{"mandelbrot"}, Repeat: 1, Params: workloads.Params{Size: 8, MaxIter: 16}})
	require.NoError(t, err)
	assert.Len(t, out.Records, 1)
}
