// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Run is one processing attempt over one document with one model
// configuration. Runs are never modified after creation.
type Run struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Filename  string    `json:"filename" yaml:"filename"`
	ModelName string    `json:"model_name" yaml:"model_name"`
	Seed      int       `json:"seed" yaml:"seed"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Interaction is the audit record of one model invocation, written whether
// or not a fact resulted.
type Interaction struct {
	// ID is the store-assigned row id. Zero before the row is written.
	ID             int64         `json:"id" yaml:"id"`
	RunID          string        `json:"run_id" yaml:"run_id"`
	ChunkID        string        `json:"chunk_id" yaml:"chunk_id"`
	Question       string        `json:"question" yaml:"question"`
	PromptSnapshot string        `json:"prompt_snapshot" yaml:"prompt_snapshot"`
	RawResponse    string        `json:"raw_response" yaml:"raw_response"`
	IsValidJSON    bool          `json:"is_valid_json" yaml:"is_valid_json"`
	Latency        time.Duration `json:"latency" yaml:"latency"`
}

// SectionStats records how long one target section took within a run.
type SectionStats struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	SectionName string        `json:"section_name" yaml:"section_name"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	ChunkCount  int           `json:"chunk_count" yaml:"chunk_count"`
}
