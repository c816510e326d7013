// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package segment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pdiddy/label-audit/internal/container"
	"github.com/pdiddy/label-audit/pkg/types"
)

const binPdftotext = "pdftotext"

// pdftotextArgs keeps the page layout and writes UTF-8 to stdout.
var pdftotextArgs = []string{"-layout", "-enc", "UTF-8"}

// converter writes the text of the PDF on stdin to stdout.
type converter func(ctx context.Context, pdfPath string, stdout io.Writer) error

// PDFSegmenter extracts PDF text with pdftotext, either installed on the
// host or inside a container image.
type PDFSegmenter struct {
	convert converter
}

// NewHostPDFSegmenter runs the pdftotext binary found on PATH.
func NewHostPDFSegmenter() *PDFSegmenter {
	return &PDFSegmenter{convert: hostConvert}
}

// NewContainerPDFSegmenter runs image under docker or podman. The image's
// entrypoint must be pdftotext. The runtime is detected on first use.
func NewContainerPDFSegmenter(image string) *PDFSegmenter {
	return &PDFSegmenter{convert: func(ctx context.Context, pdfPath string, stdout io.Writer) error {
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return err
		}
		return containerConvert(ctx, rt, image, pdfPath, stdout)
	}}
}

func hostConvert(ctx context.Context, pdfPath string, stdout io.Writer) error {
	if _, err := exec.LookPath(binPdftotext); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", binPdftotext, err)
	}
	args := append(append([]string{}, pdftotextArgs...), pdfPath, "-")
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binPdftotext, args...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w: %s", binPdftotext, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

func containerConvert(ctx context.Context, rt container.Runtime, image, pdfPath string, stdout io.Writer) error {
	if err := rt.ImageExists(ctx, image); err != nil {
		return fmt.Errorf("pdftotext image not available in %s: %w", rt.Name(), err)
	}
	f, err := os.Open(pdfPath)
	if err != nil {
		return fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	args := append(append([]string{}, pdftotextArgs...), "-", "-")
	return rt.Run(ctx, image, args, f, stdout)
}

// Segment converts the PDF at path and splits the text into page chunks.
func (s *PDFSegmenter) Segment(ctx context.Context, path string) ([]types.Chunk, error) {
	var out bytes.Buffer
	if err := s.convert(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("converting %s: %w", path, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("pdftotext produced empty output for %s", path)
	}
	return Pages(filepath.Base(path), out.String()), nil
}
