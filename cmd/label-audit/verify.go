package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/label-audit/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check whether a quote is grounded in a source text",
	Long: `Verify runs the quote verifier on its own: it reports the similarity score
of --quote against the text in --source and whether it meets the
configured threshold. It does not touch the audit store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		source, _ := cmd.Flags().GetString("source")
		quote, _ := cmd.Flags().GetString("quote")

		data, err := os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("reading source: %w", err)
		}

		v := verify.New(cfg.Verification.Threshold)
		r := v.Verify(string(data), quote)
		fmt.Printf("verified: %t\nscore:    %.2f (threshold %.2f)\nmode:     %s\ndetail:   %s\n",
			r.Verified, r.Score, v.Threshold(), r.Mode, r.Detail)
		return nil
	},
}

func init() {
	verifyCmd.Flags().String("source", "", "file holding the source text")
	verifyCmd.Flags().String("quote", "", "quote to check")
	_ = verifyCmd.MarkFlagRequired("source")
	_ = verifyCmd.MarkFlagRequired("quote")

	rootCmd.AddCommand(verifyCmd)
}
