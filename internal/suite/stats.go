package suite

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/clbench/internal/store"
)

// Summarize groups records by workload, in order of first appearance, and
// computes timing statistics for each group.
func Summarize(records []*store.RunRecord) []store.WorkloadStats {
	var order []string
	times := map[string][]float64{}
	failures := map[string]int{}
	for _, rec := range records {
		if _, seen := times[rec.Workload]; !seen {
			order = append(order, rec.Workload)
		}
		times[rec.Workload] = append(times[rec.Workload], rec.ElapsedMS)
		if !rec.Passed {
			failures[rec.Workload]++
		}
	}

	stats := make([]store.WorkloadStats, 0, len(order))
	for _, name := range order {
		xs := times[name]
		st := store.WorkloadStats{
			Workload: name,
			Runs:     len(xs),
			Failures: failures[name],
			MinMS:    floats.Min(xs),
			MaxMS:    floats.Max(xs),
		}
		// The sample standard deviation is undefined for a single run.
		if len(xs) > 1 {
			st.MeanMS, st.StdDevMS = stat.MeanStdDev(xs, nil)
		} else {
			st.MeanMS = xs[0]
		}
		stats = append(stats, st)
	}
	return stats
}

// PrintTable writes one row per workload.
func PrintTable(w io.Writer, summary *store.SuiteSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKLOAD\tRUNS\tFAILED\tMEAN (ms)\tSTDDEV (ms)\tMIN (ms)\tMAX (ms)")
	fmt.Fprintln(tw, "--------\t----\t------\t---------\t-----------\t--------\t--------")
	for _, st := range summary.Stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.3f\t%.3f\t%.3f\t%.3f\n",
			st.Workload,
			st.Runs,
			st.Failures,
			st.MeanMS,
			st.StdDevMS,
			st.MinMS,
			st.MaxMS,
		)
	}
	return tw.Flush()
}
