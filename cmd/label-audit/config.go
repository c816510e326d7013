package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/pdiddy/label-audit/internal/audit"
	"github.com/pdiddy/label-audit/internal/secrets"
	"github.com/pdiddy/label-audit/pkg/types"
)

// setDefaults registers every scalar setting so that environment variables
// reach viper.Unmarshal. Sections are only read from a config file.
func setDefaults() {
	d := types.DefaultPipelineConfig()
	viper.SetDefault("model.name", d.Model.Name)
	viper.SetDefault("model.base_url", d.Model.BaseURL)
	viper.SetDefault("model.api_key", d.Model.APIKey)
	viper.SetDefault("model.seed", d.Model.Seed)
	viper.SetDefault("model.temperature", d.Model.Temperature)
	viper.SetDefault("model.request_timeout", d.Model.RequestTimeout)
	viper.SetDefault("model.requests_per_second", d.Model.RequestsPerSecond)
	viper.SetDefault("model.max_retries", d.Model.MaxRetries)
	viper.SetDefault("model.debug", d.Model.Debug)
	viper.SetDefault("verification.threshold", d.Verification.Threshold)
	viper.SetDefault("segment.backend", d.Segment.Backend)
	viper.SetDefault("segment.container_image", d.Segment.ContainerImage)
	viper.SetDefault("top_k", d.TopK)
	viper.SetDefault("db_path", d.DBPath)
	viper.SetDefault("index_path", d.IndexPath)
	viper.SetDefault("log_file", d.LogFile)
}

// loadConfig merges defaults, config file, environment and flags.
func loadConfig() (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.PipelineConfig{}, fmt.Errorf("parsing configuration: %w", err)
	}
	if len(cfg.Sections) == 0 {
		cfg.Sections = types.DefaultPipelineConfig().Sections
	}
	for i, s := range cfg.Sections {
		if s.Title == "" || s.Question == "" {
			return types.PipelineConfig{}, fmt.Errorf("section %d needs both a title and a question", i+1)
		}
	}
	cfg.Model.APIKey = loadedSecrets.Get(secrets.OllamaAPIKey, cfg.Model.APIKey)
	return cfg, nil
}

// openStore loads the configuration and opens the audit database.
func openStore() (types.PipelineConfig, *audit.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, err
	}
	store, err := audit.Open(cfg.DBPath)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, store, nil
}

// resolveRunID returns runID when given, otherwise the latest run's id.
func resolveRunID(ctx context.Context, store *audit.Store, runID string) (string, error) {
	if runID != "" {
		return runID, nil
	}
	run, err := store.LatestRun(ctx)
	if errors.Is(err, audit.ErrRunNotFound) {
		return "", fmt.Errorf("no runs found in %s", store.Path())
	}
	if err != nil {
		return "", err
	}
	return run.RunID, nil
}
