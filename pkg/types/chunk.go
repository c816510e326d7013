// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"crypto/md5"
	"fmt"
)

// chunkIDPrefixLen is the number of leading characters of the page text
// that take part in the chunk ID.
const chunkIDPrefixLen = 50

// Chunk is one page of extracted document text.
type Chunk struct {
	// ID is a deterministic hash of document name, page, and text prefix.
	// See ComputeChunkID.
	ID string `json:"id" yaml:"id"`

	// DocumentName is the source file name (e.g. "keytruda.pdf").
	DocumentName string `json:"document_name" yaml:"document_name"`

	// PageNumber is the 1-based page the text was taken from.
	PageNumber int `json:"page_number" yaml:"page_number"`

	// Text is the page text with blocks separated by blank lines.
	Text string `json:"text" yaml:"text"`
}

// NewChunk builds a Chunk and fills in its ID.
func NewChunk(documentName string, page int, text string) Chunk {
	return Chunk{
		ID:           ComputeChunkID(documentName, page, text),
		DocumentName: documentName,
		PageNumber:   page,
		Text:         text,
	}
}

// ComputeChunkID returns the hex MD5 of "<doc>-<page>-<first 50 characters>".
// Two pages of the same document that share page number and a 50-character
// prefix collide; the ID is for dedup, not integrity.
func ComputeChunkID(documentName string, page int, text string) string {
	prefix := text
	if r := []rune(text); len(r) > chunkIDPrefixLen {
		prefix = string(r[:chunkIDPrefixLen])
	}
	raw := fmt.Sprintf("%s-%d-%s", documentName, page, prefix)
	return fmt.Sprintf("%x", md5.Sum([]byte(raw)))
}
