// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/label-audit/pkg/types"
)

// FactRecord is a stored fact row.
type FactRecord struct {
	ID    int64  `json:"id" yaml:"id"`
	RunID string `json:"run_id" yaml:"run_id"`

	// InteractionID links the fact to the model call that produced it.
	// Zero when the link was not recorded.
	InteractionID int64            `json:"interaction_id,omitempty" yaml:"interaction_id,omitempty"`
	Page          int              `json:"page" yaml:"page"`
	Attribute     string           `json:"attribute" yaml:"attribute"`
	Value         string           `json:"value" yaml:"value"`
	Quote         string           `json:"quote" yaml:"quote"`
	Confidence    types.Confidence `json:"confidence" yaml:"confidence"`
}

const runColumns = `run_id, filename, model_name, seed, created_at`

func scanRun(row interface{ Scan(...any) error }) (types.Run, error) {
	var (
		r       types.Run
		created string
	)
	if err := row.Scan(&r.RunID, &r.Filename, &r.ModelName, &r.Seed, &created); err != nil {
		return types.Run{}, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return types.Run{}, fmt.Errorf("parsing created_at %q: %w", created, err)
	}
	r.CreatedAt = t
	return r, nil
}

func (s *Store) queryRun(ctx context.Context, query string, args ...any) (types.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, ErrRunNotFound
	}
	if err != nil {
		return types.Run{}, fmt.Errorf("looking up run: %w", err)
	}
	return r, nil
}

// FindRun returns the earliest run for filename and model. The boolean is
// false when no such run exists.
func (s *Store) FindRun(ctx context.Context, filename, modelName string) (types.Run, bool, error) {
	r, err := s.queryRun(ctx,
		`SELECT `+runColumns+` FROM runs WHERE filename = ? AND model_name = ? ORDER BY created_at, rowid LIMIT 1`,
		filename, modelName)
	if errors.Is(err, ErrRunNotFound) {
		return types.Run{}, false, nil
	}
	if err != nil {
		return types.Run{}, false, err
	}
	return r, true, nil
}

// GetRun returns the run with the given id or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (types.Run, error) {
	return s.queryRun(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
}

// LatestRun returns the most recently created run or ErrRunNotFound.
func (s *Store) LatestRun(ctx context.Context) (types.Run, error) {
	return s.queryRun(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`)
}

// Runs returns every run, oldest first.
func (s *Store) Runs(ctx context.Context) ([]types.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Interactions returns the interactions of a run in insertion order.
func (s *Store) Interactions(ctx context.Context, runID string) ([]types.Interaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, chunk_id, question, prompt_snapshot, raw_response, is_valid_json, latency_seconds
		 FROM interactions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	var out []types.Interaction
	for rows.Next() {
		var (
			in      types.Interaction
			latency float64
		)
		if err := rows.Scan(&in.ID, &in.RunID, &in.ChunkID, &in.Question,
			&in.PromptSnapshot, &in.RawResponse, &in.IsValidJSON, &latency); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		in.Latency = seconds(latency)
		out = append(out, in)
	}
	return out, rows.Err()
}

const factColumns = `id, run_id, interaction_id, chunk_page, attribute, value, citation_quote, confidence`

func (s *Store) queryFacts(ctx context.Context, query string, args ...any) ([]FactRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var out []FactRecord
	for rows.Next() {
		var (
			f    FactRecord
			link sql.NullInt64
			conf string
		)
		if err := rows.Scan(&f.ID, &f.RunID, &link, &f.Page, &f.Attribute, &f.Value, &f.Quote, &conf); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		f.InteractionID = link.Int64
		f.Confidence = types.Confidence(conf)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Facts returns the facts of a run in insertion order.
func (s *Store) Facts(ctx context.Context, runID string) ([]FactRecord, error) {
	return s.queryFacts(ctx, `SELECT `+factColumns+` FROM facts WHERE run_id = ? ORDER BY id`, runID)
}

// IndexableFacts returns the facts of every run whose confidence is high
// enough to publish, in insertion order.
func (s *Store) IndexableFacts(ctx context.Context) ([]FactRecord, error) {
	return s.queryFacts(ctx,
		`SELECT `+factColumns+` FROM facts WHERE confidence NOT IN (?, ?) ORDER BY id`,
		string(types.ConfidenceLow), string(types.ConfidenceUnknown))
}

// SectionStats returns the section timings of a run in processing order.
func (s *Store) SectionStats(ctx context.Context, runID string) ([]types.SectionStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, section_name, duration_seconds, chunk_count FROM section_stats WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying section stats: %w", err)
	}
	defer rows.Close()

	var out []types.SectionStats
	for rows.Next() {
		var (
			st  types.SectionStats
			dur float64
		)
		if err := rows.Scan(&st.RunID, &st.SectionName, &dur, &st.ChunkCount); err != nil {
			return nil, fmt.Errorf("scanning section stats: %w", err)
		}
		st.Duration = seconds(dur)
		out = append(out, st)
	}
	return out, rows.Err()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
