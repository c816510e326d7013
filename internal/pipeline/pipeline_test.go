// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/label-audit/internal/audit"
	"github.com/pdiddy/label-audit/internal/extract"
	"github.com/pdiddy/label-audit/internal/segment"
	"github.com/pdiddy/label-audit/pkg/types"
)

const dosageQuote = "The recommended dosage is 200 mg every 3 weeks."

const labelText = "INDICATIONS AND USAGE\n\nKEYTRUDA is indicated to treat melanoma.\f" +
	"DOSAGE AND ADMINISTRATION\n\n" + dosageQuote

// scriptedModel answers the dosage question from the page that carries the
// dosage sentence and reports NOT_FOUND everywhere else.
type scriptedModel struct {
	calls int
}

func (m *scriptedModel) Chat(_ context.Context, req extract.ChatRequest) (string, error) {
	m.calls++
	if strings.Contains(req.Prompt, dosageQuote) && strings.Contains(req.Prompt, "recommended dosage and schedule") {
		return `{"value":"200 mg every 3 weeks","quote_snippet":"` + dosageQuote + `","confidence":"high"}`, nil
	}
	return `{"value":"NOT_FOUND","quote_snippet":""}`, nil
}

func testPipeline(t *testing.T, model extract.ChatModel) (*Pipeline, *audit.Store, *bytes.Buffer) {
	t.Helper()
	store, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var out bytes.Buffer
	return New(types.DefaultPipelineConfig(), store, model, &out), store, &out
}

func writeLabel(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(labelText), 0o644))
	return path
}

func TestProcessDocument(t *testing.T) {
	model := &scriptedModel{}
	p, store, out := testPipeline(t, model)
	path := writeLabel(t, t.TempDir(), "keytruda.txt")
	ctx := context.Background()

	brief, err := p.ProcessDocument(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, "keytruda.txt", brief.DocumentName)
	require.Len(t, brief.Sections, len(types.DefaultSections))
	for i, s := range brief.Sections {
		assert.Equal(t, types.DefaultSections[i].Title, s.Title)
	}

	dosage := brief.Sections[1]
	require.Len(t, dosage.Facts, 1)
	assert.Equal(t, "200 mg every 3 weeks", dosage.Facts[0].Value)
	assert.Equal(t, 2, dosage.Facts[0].Citations[0].PageNumber)
	assert.Empty(t, dosage.MissingInfo)
	assert.Equal(t, []string{"No evidence found"}, brief.Sections[0].MissingInfo)

	interactions, err := store.Interactions(ctx, brief.RunID)
	require.NoError(t, err)
	assert.Len(t, interactions, model.calls)

	facts, err := store.Facts(ctx, brief.RunID)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.NotZero(t, facts[0].InteractionID)
	assert.Equal(t, dosageQuote, facts[0].Quote)

	stats, err := store.SectionStats(ctx, brief.RunID)
	require.NoError(t, err)
	require.Len(t, stats, len(types.DefaultSections))
	total := 0
	for i, st := range stats {
		assert.Equal(t, types.DefaultSections[i].Title, st.SectionName)
		total += st.ChunkCount
	}
	assert.Equal(t, model.calls, total)

	run, err := store.GetRun(ctx, brief.RunID)
	require.NoError(t, err)
	assert.Equal(t, "gemma2:2b", run.ModelName)
	assert.Equal(t, 42, run.Seed)

	assert.Contains(t, out.String(), "segmented keytruda.txt (2 pages)")
	assert.Contains(t, out.String(), "finished keytruda.txt")
}

func TestProcessDocument_EmptyDocument(t *testing.T) {
	p, store, _ := testPipeline(t, &scriptedModel{})
	path := filepath.Join(t.TempDir(), "blank.txt")
	require.NoError(t, os.WriteFile(path, []byte("\f  \f"), 0o644))

	_, err := p.ProcessDocument(context.Background(), path)
	assert.ErrorContains(t, err, "no text found")

	runs, err := store.Runs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestProcessFolder_SkipsProcessedDocuments(t *testing.T) {
	model := &scriptedModel{}
	p, store, out := testPipeline(t, model)
	dir := t.TempDir()
	writeLabel(t, dir, "b.txt")
	writeLabel(t, dir, "a.txt")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))
	ctx := context.Background()

	summary, err := p.ProcessFolder(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Processed: 2}, summary)
	callsAfterFirst := model.calls
	require.Positive(t, callsAfterFirst)

	out.Reset()
	summary, err = p.ProcessFolder(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Skipped: 2}, summary)
	assert.Equal(t, callsAfterFirst, model.calls)
	assert.Contains(t, out.String(), "skipped a.txt")

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a.txt", runs[0].Filename)
	assert.Equal(t, "b.txt", runs[1].Filename)
}

type failingSegmenter struct{}

func (failingSegmenter) Segment(context.Context, string) ([]types.Chunk, error) {
	return nil, errors.New("pdftotext not found on PATH")
}

func TestProcessFolder_SegmentationFailureContinues(t *testing.T) {
	p, _, out := testPipeline(t, &scriptedModel{})
	dir := t.TempDir()
	writeLabel(t, dir, "good.txt")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.pdf"), []byte("%PDF"), 0o644))

	p.segmenterFor = func(path string) (segment.Segmenter, error) {
		if strings.HasSuffix(path, ".pdf") {
			return failingSegmenter{}, nil
		}
		return segment.TextSegmenter{}, nil
	}

	summary, err := p.ProcessFolder(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Processed: 1, Failed: 1}, summary)
	assert.True(t, summary.HasFailures())
	assert.Equal(t, 2, summary.Total())
	assert.Contains(t, out.String(), "failed  bad.pdf")
}

func TestProcessFolder_NoDocuments(t *testing.T) {
	p, _, _ := testPipeline(t, &scriptedModel{})
	_, err := p.ProcessFolder(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "no supported documents")
}

func TestProcessFolder_OtherModelIsNotSkipped(t *testing.T) {
	model := &scriptedModel{}
	p, store, _ := testPipeline(t, model)
	dir := t.TempDir()
	writeLabel(t, dir, "a.txt")
	ctx := context.Background()

	_, err := p.ProcessFolder(ctx, dir)
	require.NoError(t, err)

	cfg := types.DefaultPipelineConfig()
	cfg.Model.Name = "qwen2:1.5b"
	other := New(cfg, store, model, nil)
	summary, err := other.ProcessFolder(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
}
