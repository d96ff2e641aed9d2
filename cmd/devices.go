package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clbench/internal/accel"
	"github.com/cwbudde/clbench/internal/harness"
)

var devicesBackend string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List platforms and devices",
	Long:  `List every platform and device of a backend with the indices accepted by --platform and --device.`,
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	backendHelp := "Accelerator backend (" + backendList() + ")"
	devicesCmd.Flags().StringVar(&devicesBackend, "backend", "host", backendHelp)
}

func runDevices(cmd *cobra.Command, args []string) error {
	rt, err := accel.Open(devicesBackend)
	if err != nil {
		return err
	}
	platforms, err := harness.Enumerate(rt)
	if err != nil {
		return err
	}
	if len(platforms) == 0 {
		fmt.Println("No platforms found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tDEVICE\tNAME\tTYPE\tUNITS\tMAX GROUP\tVERSION")
	fmt.Fprintln(w, "--------\t------\t----\t----\t-----\t---------\t-------")
	for p, pi := range platforms {
		fmt.Fprintf(w, "%d\t-\t%s\t\t\t\t%s\n", p, pi.Name, pi.Version)
		for d, di := range pi.Devices {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%d\t%s\n",
				p,
				d,
				di.Name,
				di.Type,
				di.MaxComputeUnits,
				di.MaxWorkGroupSize,
				di.Version,
			)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if rt.Name() == string(accel.BackendHost) {
		fmt.Printf("\nHost kernels: %s\n", strings.Join(accel.HostKernels(), ", "))
	}
	return nil
}
