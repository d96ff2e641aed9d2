package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clbench/internal/store"
	"github.com/cwbudde/clbench/internal/suite"
)

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Manage recorded runs",
	Long:  `List, inspect and clean run records and suites written by "run --record" and "suite".`,
}

var listResultsCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Long:  `Display recorded runs with workload, device, timing, verification status and size on disk.`,
	RunE:  runListResults,
}

var showSuiteCmd = &cobra.Command{
	Use:   "show <suite-id>",
	Short: "Show a suite summary and its trace",
	Long: `Print the timing table of a suite followed by its trace, one line per run
in the order the runs happened. A suite that aborted before its first run
completed has a trace but no summary.`,
	Args: cobra.ExactArgs(1),
	RunE: runShowSuite,
}

var cleanResultsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old run records",
	Long: `Delete run records based on a retention policy: keep only the newest N
records, delete records older than N days, or both. A suite is removed
together with its last remaining run.`,
	RunE: runCleanResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(listResultsCmd)
	resultsCmd.AddCommand(showSuiteCmd)
	resultsCmd.AddCommand(cleanResultsCmd)

	resultsCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Base directory for recorded runs")

	cleanResultsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cleanResultsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanResultsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

func runListResults(cmd *cobra.Command, args []string) error {
	st, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}

	infos, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tTIMESTAMP\tWORKLOAD\tDEVICE\tELAPSED (ms)\tSTATUS\tSIZE")
	fmt.Fprintln(w, "------\t---------\t--------\t------\t------------\t------\t----")

	for _, info := range infos {
		size, err := getDirSize(st.RunDir(info.RunID))
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\t%s\t%s\n",
			shortID(info.RunID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Workload,
			info.Device,
			info.ElapsedMS,
			info.Status(),
			sizeStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal runs: %d\n", len(infos))
	return nil
}

func runCleanResults(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	st, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}

	infos, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No runs to clean.")
		return nil
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Println("No runs match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (%s, %s)\n",
			shortID(info.RunID),
			info.Workload,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var removed []store.RunInfo
	failed := 0
	for _, info := range toDelete {
		if err := st.DeleteRun(info.RunID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.RunID, "error", err)
			failed++
		} else {
			slog.Info("Deleted run", "run_id", info.RunID)
			removed = append(removed, info)
		}
	}

	suites := 0
	for _, id := range orphanedSuites(infos, removed) {
		err := st.DeleteSuite(id)
		switch {
		case err == nil:
			slog.Info("Deleted suite", "suite_id", id)
			suites++
		case errors.Is(err, store.ErrNotFound):
		default:
			slog.Error("Failed to delete suite", "suite_id", id, "error", err)
			failed++
		}
	}

	fmt.Printf("\nDeleted %d run(s) and %d suite(s), %d failed.\n", len(removed), suites, failed)
	return nil
}

// orphanedSuites returns, in order of first appearance, the suites of the
// removed runs that no surviving run still belongs to.
func orphanedSuites(infos, removed []store.RunInfo) []string {
	gone := make(map[string]bool, len(removed))
	for _, info := range removed {
		gone[info.RunID] = true
	}
	live := map[string]bool{}
	for _, info := range infos {
		if !gone[info.RunID] && info.SuiteID != "" {
			live[info.SuiteID] = true
		}
	}

	var orphans []string
	seen := map[string]bool{}
	for _, info := range removed {
		id := info.SuiteID
		if id == "" || live[id] || seen[id] {
			continue
		}
		seen[id] = true
		orphans = append(orphans, id)
	}
	return orphans
}

func runShowSuite(cmd *cobra.Command, args []string) error {
	id := args[0]
	st, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}

	summary, err := st.LoadSuite(id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load suite: %w", err)
	}

	var entries []store.TraceEntry
	reader, err := store.NewTraceReader(st.BaseDir(), id)
	switch {
	case err == nil:
		entries, err = reader.ReadAll()
		reader.Close()
		if err != nil {
			return fmt.Errorf("failed to read suite trace: %w", err)
		}
	case errors.Is(err, store.ErrNotFound):
		if summary == nil {
			return fmt.Errorf("suite %s: %w", id, err)
		}
	default:
		return fmt.Errorf("failed to open suite trace: %w", err)
	}

	if summary != nil {
		fmt.Printf("Suite %s (%s, %s), repeat %d, %s\n\n",
			summary.SuiteID,
			summary.Backend,
			summary.Device,
			summary.Repeat,
			summary.Timestamp.Format("2006-01-02 15:04:05"),
		)
		if err := suite.PrintTable(os.Stdout, summary); err != nil {
			return err
		}
	} else {
		fmt.Printf("Suite %s has no summary.\n", id)
	}

	if len(entries) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tWORKLOAD\tREPEAT\tRUN ID\tELAPSED (ms)\tSTATUS")
	fmt.Fprintln(w, "---\t--------\t------\t------\t------------\t------")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%.3f\t%s\n",
			e.Sequence,
			e.Workload,
			e.Repeat,
			shortID(e.RunID),
			e.ElapsedMS,
			traceStatus(e),
		)
	}
	return w.Flush()
}

func traceStatus(e store.TraceEntry) string {
	switch {
	case e.Error != "":
		return "error: " + e.Error
	case !e.Verified:
		return "unchecked"
	case e.Passed:
		return "success"
	default:
		return "failure"
	}
}

// selectRunsForDeletion returns the runs older than olderThanDays plus the
// oldest runs beyond the newest keepLast. A zero limit disables that rule.
func selectRunsForDeletion(infos []store.RunInfo, keepLast, olderThanDays int, now time.Time) []store.RunInfo {
	var toDelete []store.RunInfo
	selected := map[string]bool{}

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.RunInfo, len(infos))
		copy(sorted, infos)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !selected[info.RunID] {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	return toDelete
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
