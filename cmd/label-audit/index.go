package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/label-audit/internal/factindex"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and search the fact index",
	Long: `The fact index is a separate full-text database holding the facts whose
confidence is medium or high. Rebuild it after new runs with "index build".`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the fact index from the audit store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		idx, err := factindex.Open(cfg.IndexPath)
		if err != nil {
			return err
		}
		defer idx.Close()

		n, err := idx.Rebuild(cmd.Context(), store)
		if err != nil {
			return err
		}
		fmt.Printf("indexed %d facts into %s\n", n, cfg.IndexPath)
		return nil
	},
}

var indexQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the fact index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		idx, err := factindex.Open(cfg.IndexPath)
		if err != nil {
			return err
		}
		defer idx.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		hits, err := idx.Query(cmd.Context(), strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("no matching facts")
			return nil
		}
		for i, h := range hits {
			fmt.Printf("%d. [%s] %s\n   %s (run %s, fact %d)\n", i+1, h.Confidence, h.Attribute, h.Document, h.RunID, h.FactID)
		}
		return nil
	},
}

func init() {
	indexQueryCmd.Flags().Int("limit", 5, "maximum number of results")

	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexQueryCmd)
	rootCmd.AddCommand(indexCmd)
}
