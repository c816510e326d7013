// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives documents through segmentation, retrieval and
// extraction, recording every run in the audit store.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/label-audit/internal/audit"
	"github.com/pdiddy/label-audit/internal/extract"
	"github.com/pdiddy/label-audit/internal/logging"
	"github.com/pdiddy/label-audit/internal/retrieve"
	"github.com/pdiddy/label-audit/internal/segment"
	"github.com/pdiddy/label-audit/internal/verify"
	"github.com/pdiddy/label-audit/pkg/types"
)

var _ extract.AuditLog = (*audit.Store)(nil)

// BatchSummary holds counts from a folder run.
type BatchSummary struct {
	Processed int
	Skipped   int
	Failed    int
}

// Total returns the number of documents seen.
func (s BatchSummary) Total() int {
	return s.Processed + s.Skipped + s.Failed
}

// HasFailures reports whether any document failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// Pipeline processes documents one at a time. It is not safe for
// concurrent use.
type Pipeline struct {
	cfg      types.PipelineConfig
	store    *audit.Store
	model    extract.ChatModel
	verifier *verify.Verifier
	w        io.Writer

	// segmenterFor picks the segmenter for a path. Tests replace it.
	segmenterFor func(path string) (segment.Segmenter, error)
}

// New builds a pipeline. Progress lines go to w.
func New(cfg types.PipelineConfig, store *audit.Store, model extract.ChatModel, w io.Writer) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if len(cfg.Sections) == 0 {
		cfg.Sections = types.DefaultSections
	}
	if w == nil {
		w = io.Discard
	}
	p := &Pipeline{
		cfg:      cfg,
		store:    store,
		model:    model,
		verifier: verify.New(cfg.Verification.Threshold),
		w:        w,
	}
	p.segmenterFor = func(path string) (segment.Segmenter, error) {
		return segment.ForPath(path, cfg.Segment)
	}
	return p
}

// ProcessDocument segments the document at path, starts a run and asks
// every configured section question of the section's top chunks.
func (p *Pipeline) ProcessDocument(ctx context.Context, path string) (types.Brief, error) {
	name := filepath.Base(path)

	seg, err := p.segmenterFor(path)
	if err != nil {
		return types.Brief{}, err
	}
	chunks, err := seg.Segment(ctx, path)
	if err != nil {
		return types.Brief{}, fmt.Errorf("segmenting %s: %w", name, err)
	}
	if len(chunks) == 0 {
		return types.Brief{}, fmt.Errorf("no text found in %s", name)
	}
	fmt.Fprintf(p.w, "segmented %s (%d pages)\n", name, len(chunks))

	runID, err := p.store.StartRun(ctx, name, p.cfg.Model.Name, p.cfg.Model.Seed)
	if err != nil {
		return types.Brief{}, err
	}

	ex := extract.NewExtractor(p.model, p.store, p.verifier, extract.ExtractorConfig{
		RunID:          runID,
		ModelName:      p.cfg.Model.Name,
		Seed:           p.cfg.Model.Seed,
		Temperature:    p.cfg.Model.Temperature,
		RequestTimeout: p.cfg.Model.RequestTimeout,
	})
	retriever := retrieve.NewKeywordRetriever(chunks)

	brief := types.Brief{DocumentName: name, RunID: runID}
	start := time.Now()

	for _, target := range p.cfg.Sections {
		if err := ctx.Err(); err != nil {
			return brief, err
		}

		sectionStart := time.Now()
		hits := retriever.Retrieve(target.Title+" "+target.Question, p.cfg.TopK)

		section := types.Section{Title: target.Title, Question: target.Question}
		for _, chunk := range hits {
			out := ex.Extract(ctx, chunk, target.Question)
			if out.Kind == extract.Accepted {
				section.Facts = append(section.Facts, *out.Fact)
				continue
			}
			logging.LogEvent("run=%s section=%q page=%d outcome=%s: %s",
				runID, target.Title, chunk.PageNumber, out.Kind, out.Detail)
		}
		if len(section.Facts) == 0 {
			section.MissingInfo = []string{"No evidence found"}
		}

		duration := time.Since(sectionStart)
		if err := p.store.LogSectionStats(ctx, runID, target.Title, duration, len(hits)); err != nil {
			return brief, err
		}
		fmt.Fprintf(p.w, "  - %s: %.1fs (%d chunks, %d facts)\n", target.Title, duration.Seconds(), len(hits), len(section.Facts))

		brief.Sections = append(brief.Sections, section)
	}

	brief.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	fmt.Fprintf(p.w, "finished %s in %.1fs (%d facts, run %s)\n", name, time.Since(start).Seconds(), brief.FactCount(), runID)
	return brief, nil
}

// ProcessFolder processes every supported document in dir in name order.
// Documents that already have a run for the configured model are skipped;
// a failing document is counted and the batch moves on.
func (p *Pipeline) ProcessFolder(ctx context.Context, dir string) (BatchSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !segment.Supported(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return BatchSummary{}, fmt.Errorf("no supported documents in %s", dir)
	}
	fmt.Fprintf(p.w, "found %d documents\n", len(files))

	var summary BatchSummary
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		run, done, err := p.store.FindRun(ctx, name, p.cfg.Model.Name)
		if err != nil {
			fmt.Fprintf(p.w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		if done {
			fmt.Fprintf(p.w, "skipped %s (run %s)\n", name, run.RunID)
			summary.Skipped++
			continue
		}

		fmt.Fprintf(p.w, "extracting %s\n", name)
		if _, err := p.ProcessDocument(ctx, filepath.Join(dir, name)); err != nil {
			fmt.Fprintf(p.w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		summary.Processed++
	}

	fmt.Fprintf(p.w, "\nprocessed: %d, skipped: %d, failed: %d\n",
		summary.Processed, summary.Skipped, summary.Failed)
	return summary, nil
}
