// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the label-audit CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/label-audit/internal/logging"
	"github.com/pdiddy/label-audit/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials read from .secrets/ at startup.
var loadedSecrets secrets.Secrets

var rootCmd = &cobra.Command{
	Use:   "label-audit",
	Short: "Extract audited, quote-verified facts from drug labels",
	Long: `label-audit asks a local language model targeted questions about drug
label documents and keeps only answers whose supporting quote can be found
on the page they came from. Every model call is recorded in an append-only
SQLite audit store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(secrets.DefaultDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Keys())
		}
		return logging.Init(viper.GetString("log_file"))
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Close()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./label-audit.yaml or ~/.config/label-audit/label-audit.yaml)")
	pf.String("db", "", "audit database path")
	pf.String("model", "", "model name served by Ollama")
	pf.String("ollama-url", "", "Ollama server base URL")
	pf.Int("seed", 0, "decoding seed")
	pf.Float64("threshold", 0, "minimum quote similarity score (0-100)")
	pf.String("log-file", "", "append diagnostic logs to this file")
	pf.Bool("debug", false, "log every model request and response")

	bindFlag("db_path", "db")
	bindFlag("model.name", "model")
	bindFlag("model.base_url", "ollama-url")
	bindFlag("model.seed", "seed")
	bindFlag("verification.threshold", "threshold")
	bindFlag("log_file", "log-file")
	bindFlag("model.debug", "debug")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

func initConfig() {
	setDefaults()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("label-audit")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "label-audit"))
		}
	}

	viper.SetEnvPrefix("LABEL_AUDIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
