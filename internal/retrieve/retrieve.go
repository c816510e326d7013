// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve ranks page chunks against a section query by keyword
// overlap.
package retrieve

import (
	"sort"
	"strings"

	"github.com/pdiddy/label-audit/pkg/types"
)

// KeywordRetriever scores chunks by how many distinct query words occur in
// their text. Matching is case-insensitive substring containment.
type KeywordRetriever struct {
	chunks []types.Chunk
	lower  []string
}

// NewKeywordRetriever indexes chunks for retrieval. The slice order breaks
// ties between equal scores.
func NewKeywordRetriever(chunks []types.Chunk) *KeywordRetriever {
	lower := make([]string, len(chunks))
	for i, c := range chunks {
		lower[i] = strings.ToLower(c.Text)
	}
	return &KeywordRetriever{chunks: chunks, lower: lower}
}

// Retrieve returns at most topK chunks with a positive score, best first.
func (r *KeywordRetriever) Retrieve(query string, topK int) []types.Chunk {
	if topK <= 0 {
		return nil
	}

	words := uniqueWords(query)

	type scored struct {
		score int
		chunk types.Chunk
	}
	var hits []scored
	for i, text := range r.lower {
		score := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{score: score, chunk: r.chunks[i]})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]types.Chunk, len(hits))
	for i, h := range hits {
		out[i] = h.chunk
	}
	return out
}

func uniqueWords(query string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	return words
}
