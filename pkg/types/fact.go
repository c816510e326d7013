// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Confidence is the model's self-reported certainty for a fact.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

// ParseConfidence maps a model-supplied label to a Confidence. Missing or
// unrecognized labels become ConfidenceLow.
func ParseConfidence(s string) Confidence {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceUnknown:
		return c
	default:
		return ConfidenceLow
	}
}

// Citation grounds a fact in a page of a source document.
type Citation struct {
	// DocumentID names the source document.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// PageNumber is the 1-based page of the cited chunk.
	PageNumber int `json:"page_number" yaml:"page_number"`

	// Quote is a single contiguous excerpt that passed verification
	// against the page text.
	Quote string `json:"quote" yaml:"quote"`
}

// Fact is a verified answer to one target question. A Fact is only built
// after its citation has passed the quote verifier.
type Fact struct {
	// Attribute is the question that was asked.
	Attribute string `json:"attribute" yaml:"attribute"`

	// Value is the extracted answer.
	Value string `json:"value" yaml:"value"`

	// IsNegation is reserved; the model is not asked to report negation.
	IsNegation bool `json:"is_negation" yaml:"is_negation"`

	Confidence Confidence `json:"confidence" yaml:"confidence"`

	// Reasoning is a short note naming the model and call latency.
	Reasoning string `json:"reasoning" yaml:"reasoning"`

	// Citations is never empty. Exactly one entry today: the chunk the
	// fact was extracted from.
	Citations []Citation `json:"citations" yaml:"citations"`
}

// Section collects the facts found for one target question.
type Section struct {
	Title       string   `json:"title" yaml:"title"`
	Question    string   `json:"question" yaml:"question"`
	Facts       []Fact   `json:"facts" yaml:"facts"`
	MissingInfo []string `json:"missing_info,omitempty" yaml:"missing_info,omitempty"`
}

// Brief is the in-memory result of processing one document.
type Brief struct {
	DocumentName string    `json:"document_name" yaml:"document_name"`
	RunID        string    `json:"run_id" yaml:"run_id"`
	Sections     []Section `json:"sections" yaml:"sections"`
	GeneratedAt  string    `json:"generated_at" yaml:"generated_at"`
}

// FactCount returns the number of facts across all sections.
func (b Brief) FactCount() int {
	n := 0
	for _, s := range b.Sections {
		n += len(s.Facts)
	}
	return n
}
