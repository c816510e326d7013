package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a stored run with its facts and timings to a file",
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

		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = filepath.Join("exports", runID+"."+format)
		}

		switch format {
		case "yaml":
			err = store.ExportYAML(cmd.Context(), runID, out)
		case "json":
			err = store.ExportJSON(cmd.Context(), runID, out)
		default:
			return fmt.Errorf("unsupported format %q (want yaml or json)", format)
		}
		if err != nil {
			return err
		}
		fmt.Printf("exported run %s to %s\n", runID, out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("run-id", "", "run to export (default: latest)")
	exportCmd.Flags().String("format", "yaml", "output format: yaml or json")
	exportCmd.Flags().String("out", "", "output path (default: exports/<run-id>.<format>)")

	rootCmd.AddCommand(exportCmd)
}
