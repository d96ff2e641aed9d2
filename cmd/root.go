package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "clbench",
	Short: "Compute kernel dispatch and verification harness",
	Long: `clbench runs compute kernels (binomial, gaussian, mandelbrot, nbody, ray)
on a selected device, times them and verifies the results against a host
reference.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the run report.
		return setupLogging(os.Stderr, logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// setupLogging makes a JSON handler writing to w at the named level the
// default slog logger.
func setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}
