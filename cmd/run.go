package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clbench/internal/harness"
	"github.com/cwbudde/clbench/internal/store"
	"github.com/cwbudde/clbench/internal/suite"
	"github.com/cwbudde/clbench/internal/workloads"
)

// errVerificationFailed makes the process exit non-zero after the report
// has been printed.
var errVerificationFailed = errors.New("verification failed")

var recordRun bool

var runCmd = &cobra.Command{
	Use:   "run <workload>",
	Short: "Run one workload once",
	Long: `Run a single workload on the selected device and print its report.

Available workloads: ` + strings.Join(workloads.Names(), ", ") + `

With --check 1 the output is verified against the host reference; with
--check 2 a bitmap of the result is also written for image workloads.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: workloads.Names(),
	RunE:      runWorkload,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addHarnessFlags(runCmd.Flags())
	runCmd.Flags().BoolVar(&recordRun, "record", false, "Persist the run record under --data-dir")
}

func runWorkload(cmd *cobra.Command, args []string) error {
	name := args[0]
	task, err := workloads.Prepare(name, workloadParams())
	if err != nil {
		return err
	}

	cfg := harnessConfig()
	h, err := harness.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create harness: %w", err)
	}

	res, err := h.Run(task)
	if err != nil {
		return err
	}

	if recordRun {
		st, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create result store: %w", err)
		}
		rec := suite.NewRecord(res, cfg, h.Runtime().Name(), "")
		if err := suite.Persist(st, rec); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		slog.Info("Run recorded", "run_id", rec.RunID, "dir", st.RunDir(rec.RunID))
	}

	if !res.Passed() {
		return fmt.Errorf("%s: %w at index %d", name, errVerificationFailed, res.Verification.Index)
	}
	return nil
}
