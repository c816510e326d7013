// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit is the append-only SQLite record of extraction runs: one
// row per run, per model interaction, per accepted fact and per section.
// Rows are never updated or deleted.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/label-audit/pkg/types"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run lookup matches nothing.
var ErrRunNotFound = errors.New("run not found")

// Store manages the audit SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the audit database at path, creating the parent
// directory and schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Path returns the database file the store was opened on.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			model_name TEXT NOT NULL,
			seed INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_file_model ON runs(filename, model_name)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			chunk_id TEXT,
			question TEXT,
			prompt_snapshot TEXT,
			raw_response TEXT,
			is_valid_json INTEGER NOT NULL,
			latency_seconds REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_run ON interactions(run_id)`,
		`CREATE TABLE IF NOT EXISTS facts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			interaction_id INTEGER REFERENCES interactions(id),
			chunk_page INTEGER,
			attribute TEXT,
			value TEXT,
			citation_quote TEXT,
			confidence TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_run ON facts(run_id)`,
		`CREATE TABLE IF NOT EXISTS section_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			section_name TEXT,
			duration_seconds REAL,
			chunk_count INTEGER
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// StartRun records a new run and returns its generated id.
func (s *Store) StartRun(ctx context.Context, filename, modelName string, seed int) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, filename, model_name, seed, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, filename, modelName, seed, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return runID, nil
}

// LogInteraction appends one model invocation and returns its row id.
func (s *Store) LogInteraction(ctx context.Context, in types.Interaction) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (run_id, chunk_id, question, prompt_snapshot, raw_response, is_valid_json, latency_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.RunID, in.ChunkID, in.Question, in.PromptSnapshot, in.RawResponse,
		in.IsValidJSON, in.Latency.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting interaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading interaction id: %w", err)
	}
	return id, nil
}

// SaveFact appends an accepted fact, storing its first citation. An
// interactionID of 0 is stored as NULL.
func (s *Store) SaveFact(ctx context.Context, runID string, interactionID int64, fact types.Fact) error {
	var (
		page  int
		quote string
	)
	if len(fact.Citations) > 0 {
		page = fact.Citations[0].PageNumber
		quote = fact.Citations[0].Quote
	}

	var link sql.NullInt64
	if interactionID > 0 {
		link = sql.NullInt64{Int64: interactionID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (run_id, interaction_id, chunk_page, attribute, value, citation_quote, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, link, page, fact.Attribute, fact.Value, quote, string(fact.Confidence),
	)
	if err != nil {
		return fmt.Errorf("inserting fact: %w", err)
	}
	return nil
}

// LogSectionStats appends the timing row for one section of a run.
func (s *Store) LogSectionStats(ctx context.Context, runID, section string, duration time.Duration, chunkCount int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO section_stats (run_id, section_name, duration_seconds, chunk_count) VALUES (?, ?, ?, ?)`,
		runID, section, duration.Seconds(), chunkCount,
	)
	if err != nil {
		return fmt.Errorf("inserting section stats: %w", err)
	}
	return nil
}
