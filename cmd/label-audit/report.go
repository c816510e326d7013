package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/label-audit/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the facts and timings of a stored run",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		flag, _ := cmd.Flags().GetString("run-id")
		runID, err := resolveRunID(cmd.Context(), store, flag)
		if err != nil {
			return err
		}
		return report.WriteRun(cmd.Context(), os.Stdout, store, runID)
	},
}

var latencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "Chart section durations of a stored run",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		flag, _ := cmd.Flags().GetString("run-id")
		runID, err := resolveRunID(cmd.Context(), store, flag)
		if err != nil {
			return err
		}
		return report.WriteLatency(cmd.Context(), os.Stdout, store, runID)
	},
}

func init() {
	reportCmd.Flags().String("run-id", "", "run to report (default: latest)")
	latencyCmd.Flags().String("run-id", "", "run to chart (default: latest)")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(latencyCmd)
}
