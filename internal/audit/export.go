// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/label-audit/pkg/types"
)

// RunExport is the portable form of one run.
type RunExport struct {
	Run          types.Run            `json:"run" yaml:"run"`
	Facts        []FactRecord         `json:"facts" yaml:"facts"`
	SectionStats []types.SectionStats `json:"section_stats" yaml:"section_stats"`
}

// Export collects a run with its facts and section timings.
func (s *Store) Export(ctx context.Context, runID string) (RunExport, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return RunExport{}, err
	}
	facts, err := s.Facts(ctx, runID)
	if err != nil {
		return RunExport{}, err
	}
	stats, err := s.SectionStats(ctx, runID)
	if err != nil {
		return RunExport{}, err
	}
	return RunExport{Run: run, Facts: facts, SectionStats: stats}, nil
}

// ExportYAML writes the run to path as YAML.
func (s *Store) ExportYAML(ctx context.Context, runID, path string) error {
	exp, err := s.Export(ctx, runID)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return writeFile(path, data)
}

// ExportJSON writes the run to path as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, runID, path string) error {
	exp, err := s.Export(ctx, runID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
