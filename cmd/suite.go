package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clbench/internal/harness"
	"github.com/cwbudde/clbench/internal/store"
	"github.com/cwbudde/clbench/internal/suite"
)

var (
	suiteRepeat  int
	suiteNoStore bool
)

var suiteCmd = &cobra.Command{
	Use:   "suite [workloads...]",
	Short: "Run workloads repeatedly and summarize timings",
	Long: `Run each named workload (all of them when none are given) --repeat times
on one device. Programs are cached across runs, so in binary mode each
workload compiles from source once. Records and a JSONL trace are written
under --data-dir. Verification failures are counted and the suite continues.`,
	RunE: runSuite,
}

func init() {
	rootCmd.AddCommand(suiteCmd)
	addHarnessFlags(suiteCmd.Flags())
	suiteCmd.Flags().IntVar(&suiteRepeat, "repeat", 3, "Runs per workload")
	suiteCmd.Flags().BoolVar(&suiteNoStore, "no-store", false, "Do not persist records or the trace")
}

func runSuite(cmd *cobra.Command, args []string) error {
	opts := suite.Options{
		Workloads: args,
		Repeat:    suiteRepeat,
		Params:    workloadParams(),
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	h, err := harness.New(harnessConfig())
	if err != nil {
		return fmt.Errorf("failed to create harness: %w", err)
	}

	var st *store.FSStore
	if !suiteNoStore {
		st, err = store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create result store: %w", err)
		}
	}

	out, runErr := suite.NewRunner(h, st).Run(opts)
	if out == nil {
		return runErr
	}

	fmt.Printf("\nSuite %s (%s, %s)\n\n", out.Summary.SuiteID, out.Summary.Backend, out.Summary.Device)
	if err := suite.PrintTable(os.Stdout, out.Summary); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if n := out.Failures(); n > 0 {
		return fmt.Errorf("%d run(s): %w", n, errVerificationFailed)
	}
	return nil
}
