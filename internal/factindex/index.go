// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package factindex publishes confident facts into a separate SQLite FTS5
// database so they can be searched without touching the audit store.
package factindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/label-audit/internal/audit"
)

// defaultLimit caps Query results when the caller passes no limit.
const defaultLimit = 10

// Source supplies the facts to publish.
type Source interface {
	IndexableFacts(ctx context.Context) ([]audit.FactRecord, error)
}

// Hit is one search result.
type Hit struct {
	FactID     int64   `json:"fact_id" yaml:"fact_id"`
	RunID      string  `json:"run_id" yaml:"run_id"`
	Attribute  string  `json:"attribute" yaml:"attribute"`
	Confidence string  `json:"confidence" yaml:"confidence"`
	Document   string  `json:"document" yaml:"document"`
	Score      float64 `json:"score" yaml:"score"`
}

// Index manages the fact index database.
type Index struct {
	db *sql.DB
}

// Open opens or creates the index database at path.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return idx, nil
}

// Close releases the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func (idx *Index) createSchema() error {
	_, err := idx.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS facts_fts USING fts5(
		document,
		attribute UNINDEXED,
		confidence UNINDEXED,
		run_id UNINDEXED,
		fact_id UNINDEXED
	)`)
	if err != nil {
		return fmt.Errorf("creating FTS table: %w", err)
	}
	return nil
}

// Document renders the indexed text for one fact.
func Document(f audit.FactRecord) string {
	return fmt.Sprintf("Attribute: %s. Value: %s. Context: %s", f.Attribute, f.Value, f.Quote)
}

// Rebuild replaces the index contents with the facts from src in one
// transaction and returns the number of facts indexed.
func (idx *Index) Rebuild(ctx context.Context, src Source) (int, error) {
	facts, err := src.IndexableFacts(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading facts: %w", err)
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM facts_fts`); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO facts_fts (document, attribute, confidence, run_id, fact_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range facts {
		if _, err := stmt.ExecContext(ctx, Document(f), f.Attribute, string(f.Confidence), f.RunID, f.ID); err != nil {
			return 0, fmt.Errorf("indexing fact %d: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing index: %w", err)
	}
	return len(facts), nil
}

// Query runs a free-text search and returns the best matches first. Any
// word of text may match.
func (idx *Index) Query(ctx context.Context, text string, limit int) ([]Hit, error) {
	match := matchExpr(text)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := idx.db.QueryContext(ctx,
		`SELECT fact_id, run_id, attribute, confidence, document, bm25(facts_fts)
		 FROM facts_fts WHERE facts_fts MATCH ? ORDER BY bm25(facts_fts) LIMIT ?`,
		match, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fact index: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.FactID, &h.RunID, &h.Attribute, &h.Confidence, &h.Document, &h.Score); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// matchExpr turns free text into an FTS5 expression of quoted terms joined
// with OR, so punctuation in the input cannot be read as query syntax.
func matchExpr(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var terms []string
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}
