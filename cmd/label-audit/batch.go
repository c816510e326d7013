package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/label-audit/internal/extract"
	"github.com/pdiddy/label-audit/internal/pipeline"
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract facts from every label in a folder",
	Long: `Batch processes each PDF and text file in a folder in name order. A file
that already has a run for the configured model is skipped, so an
interrupted batch can be restarted. A file that cannot be read is reported
and the batch continues.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		p := pipeline.New(cfg, store, extract.NewOllamaBackend(cfg.Model), os.Stdout)
		summary, err := p.ProcessFolder(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if summary.HasFailures() {
			return fmt.Errorf("%d of %d documents failed", summary.Failed, summary.Total())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
}
