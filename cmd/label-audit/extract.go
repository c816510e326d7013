package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/label-audit/internal/extract"
	"github.com/pdiddy/label-audit/internal/pipeline"
	"github.com/pdiddy/label-audit/internal/report"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract verified facts from one label document",
	Long: `Extract segments a PDF or text label into pages, retrieves the pages most
relevant to each configured section question, and asks the model for an
answer with a supporting quote. Only answers whose quote is found on the
page are kept. The resulting brief is printed to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("file not found: %s", args[0])
		}

		p := pipeline.New(cfg, store, extract.NewOllamaBackend(cfg.Model), os.Stderr)
		brief, err := p.ProcessDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(brief)
		}
		return report.WriteBrief(os.Stdout, brief)
	},
}

func init() {
	extractCmd.Flags().Bool("json", false, "print the brief as JSON")

	rootCmd.AddCommand(extractCmd)
}
