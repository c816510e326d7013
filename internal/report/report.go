// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders briefs, stored runs and section latency charts
// for the terminal.
package report

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/pdiddy/label-audit/internal/audit"
	"github.com/pdiddy/label-audit/pkg/types"
)

// Source is the read side of the audit store the report needs.
type Source interface {
	GetRun(ctx context.Context, runID string) (types.Run, error)
	Facts(ctx context.Context, runID string) ([]audit.FactRecord, error)
	SectionStats(ctx context.Context, runID string) ([]types.SectionStats, error)
}

// barWidth is the length of the longest bar in the latency chart.
const barWidth = 40

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)

	highConfidence  = color.New(color.FgGreen).SprintFunc()
	otherConfidence = color.New(color.FgYellow).SprintFunc()
)

func confidenceLabel(c types.Confidence) string {
	label := "(" + string(c) + ")"
	if c == types.ConfidenceHigh {
		return highConfidence(label)
	}
	return otherConfidence(label)
}

func rule(w io.Writer, title string) {
	fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(title), strings.Repeat("=", len(title)))
}

// WriteBrief prints the brief produced by processing one document.
func WriteBrief(w io.Writer, brief types.Brief) error {
	rule(w, "Label Brief: "+brief.DocumentName)
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("Run ID: %s | Generated: %s", brief.RunID, brief.GeneratedAt)))

	for _, sec := range brief.Sections {
		fmt.Fprintf(w, "\n%s\n", headingStyle.Render(sec.Title))
		if len(sec.Facts) == 0 {
			fmt.Fprintln(w, "No facts extracted.")
			continue
		}
		for _, f := range sec.Facts {
			fmt.Fprintf(w, "• %s %s\n", f.Value, confidenceLabel(f.Confidence))
			for _, c := range f.Citations {
				fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  Citation (p%d): %q", c.PageNumber, c.Quote)))
			}
		}
	}
	return nil
}

// WriteRun prints a stored run: its facts grouped by question in insertion
// order, then a table of section timings.
func WriteRun(ctx context.Context, w io.Writer, src Source, runID string) error {
	run, err := src.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	facts, err := src.Facts(ctx, runID)
	if err != nil {
		return err
	}

	rule(w, "Label Brief: "+run.Filename)
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("Run ID: %s | Model: %s | Date: %s",
		run.RunID, run.ModelName, run.CreatedAt.Format(time.RFC3339))))

	if len(facts) == 0 {
		fmt.Fprintln(w, "\nNo verified facts found for this run.")
		return nil
	}

	current := ""
	for i, f := range facts {
		if i == 0 || f.Attribute != current {
			fmt.Fprintf(w, "\n%s\n", headingStyle.Render(f.Attribute))
			current = f.Attribute
		}
		fmt.Fprintf(w, "• %s %s\n", f.Value, confidenceLabel(f.Confidence))
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  Citation (p%d): %q", f.Page, f.Quote)))
	}

	stats, err := src.SectionStats(ctx, runID)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	rule(w, "Performance Stats")
	fmt.Fprintln(w, statsTable(stats))
	fmt.Fprintf(w, "Total Inference Time: %.2fs\n", totalDuration(stats).Seconds())
	return nil
}

func statsTable(stats []types.SectionStats) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Section", "Chunks", "Duration (s)")
	for _, s := range stats {
		t.Row(s.SectionName, fmt.Sprintf("%d", s.ChunkCount), fmt.Sprintf("%.2f", s.Duration.Seconds()))
	}
	return t.String()
}

func totalDuration(stats []types.SectionStats) time.Duration {
	var total time.Duration
	for _, s := range stats {
		total += s.Duration
	}
	return total
}

// WriteLatency prints a horizontal bar per section scaled to the slowest
// section.
func WriteLatency(ctx context.Context, w io.Writer, src Source, runID string) error {
	run, err := src.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	stats, err := src.SectionStats(ctx, runID)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintf(w, "No stats found for run %s\n", runID)
		return nil
	}

	short := run.RunID
	if len(short) > 8 {
		short = short[:8]
	}
	rule(w, fmt.Sprintf("Latency by Section (model %s, run %s)", run.ModelName, short))

	labelWidth := 0
	var longest time.Duration
	for _, s := range stats {
		labelWidth = max(labelWidth, len(s.SectionName))
		longest = max(longest, s.Duration)
	}

	for _, s := range stats {
		fmt.Fprintf(w, "%-*s | %s %.1fs\n", labelWidth, s.SectionName, bar(s.Duration, longest), s.Duration.Seconds())
	}
	return nil
}

func bar(d, longest time.Duration) string {
	if longest <= 0 || d <= 0 {
		return ""
	}
	n := int(math.Round(float64(d) / float64(longest) * barWidth))
	if n == 0 {
		n = 1
	}
	return strings.Repeat("#", n)
}
