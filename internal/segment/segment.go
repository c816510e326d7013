// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package segment turns label documents into page chunks. Each non-empty
// page becomes one chunk whose text is the page's blocks, trimmed and
// separated by blank lines.
package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/label-audit/pkg/types"
)

// pageBreak separates pages in pdftotext output and in plain text inputs.
const pageBreak = "\f"

// Backend names accepted by ForPath.
const (
	BackendHost      = "pdftotext"
	BackendContainer = "container"
)

// Segmenter produces the page chunks of one document.
type Segmenter interface {
	Segment(ctx context.Context, path string) ([]types.Chunk, error)
}

var blankLines = regexp.MustCompile(`\n[ \t]*\n`)

// Supported reports whether path has an extension the segmenters handle.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt":
		return true
	default:
		return false
	}
}

// ForPath returns the segmenter for path's extension. PDFs are read with
// the backend selected in cfg.
func ForPath(path string, cfg types.SegmentConfig) (Segmenter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return TextSegmenter{}, nil
	case ".pdf":
		switch cfg.Backend {
		case "", BackendHost:
			return NewHostPDFSegmenter(), nil
		case BackendContainer:
			return NewContainerPDFSegmenter(cfg.ContainerImage), nil
		default:
			return nil, fmt.Errorf("unknown segment backend %q", cfg.Backend)
		}
	default:
		return nil, fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
}

// TextSegmenter reads plain text files whose pages are separated by form
// feeds.
type TextSegmenter struct{}

// Segment reads path and splits it into page chunks.
func (TextSegmenter) Segment(_ context.Context, path string) ([]types.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Pages(filepath.Base(path), string(data)), nil
}

// Pages splits text on form feeds and returns one chunk per page that has
// any text left after cleaning. Page numbers are 1-based positions in the
// document, so skipped pages leave gaps.
func Pages(documentName, text string) []types.Chunk {
	var chunks []types.Chunk
	for i, page := range strings.Split(text, pageBreak) {
		clean := cleanPage(page)
		if clean == "" {
			continue
		}
		chunks = append(chunks, types.NewChunk(documentName, i+1, clean))
	}
	return chunks
}

// cleanPage splits a page into blank-line separated blocks, trims each,
// drops empty ones and rejoins them with a single blank line.
func cleanPage(page string) string {
	page = strings.ReplaceAll(page, "\r\n", "\n")
	var blocks []string
	for _, b := range blankLines.Split(page, -1) {
		if b = strings.TrimSpace(b); b != "" {
			blocks = append(blocks, b)
		}
	}
	return strings.Join(blocks, "\n\n")
}
