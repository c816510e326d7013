// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pdiddy/label-audit/pkg/types"
)

// valueSeparator joins list-shaped values into a single string.
const valueSeparator = "; "

// responseSchema describes the shapes the extractor can work with. Lists
// are accepted where strings were requested and flattened by harden.
// Confidence is unconstrained; unrecognized labels become low.
var responseSchema = mustSchema(`{
	"type": "object",
	"required": ["value", "quote_snippet"],
	"properties": {
		"value": {"$ref": "#/definitions/stringOrList"},
		"quote_snippet": {"$ref": "#/definitions/stringOrList"}
	},
	"definitions": {
		"stringOrList": {
			"oneOf": [
				{"type": "string"},
				{"type": "array", "items": {"type": "string"}}
			]
		}
	}
}`)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compiling response schema: %v", err))
	}
	return s
}

// modelAnswer is a model response after hardening.
type modelAnswer struct {
	Value      string
	Quote      string
	Confidence types.Confidence
}

// parseResponse decodes the raw model output. An error here means the
// response was not JSON at all.
func parseResponse(raw string) (any, error) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}
	return decoded, nil
}

// harden validates the decoded response against responseSchema and
// flattens list-shaped fields. The returned error describes why the
// response cannot be used.
func harden(decoded any) (modelAnswer, error) {
	result, err := responseSchema.Validate(gojsonschema.NewGoLoader(decoded))
	if err != nil {
		return modelAnswer{}, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return modelAnswer{}, fmt.Errorf("response failed validation: %s", strings.Join(details, "; "))
	}

	obj := decoded.(map[string]any)

	value, ok := joinValue(obj["value"])
	if !ok {
		return modelAnswer{}, fmt.Errorf("value is not a string")
	}
	quote, ok := longestQuote(obj["quote_snippet"])
	if !ok {
		return modelAnswer{}, fmt.Errorf("quote_snippet is not a string")
	}

	conf := types.ConfidenceLow
	if s, ok := obj["confidence"].(string); ok {
		conf = types.ParseConfidence(s)
	}

	return modelAnswer{Value: value, Quote: quote, Confidence: conf}, nil
}

// joinValue returns v unchanged if it is a string, or its elements joined
// with "; " in their original order if it is a list of strings.
func joinValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			s, ok := p.(string)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, valueSeparator), true
	default:
		return "", false
	}
}

// longestQuote returns v if it is a string. For a list of strings it
// returns the longest element, counted in characters; among equally long
// elements the first one wins. An empty list has no quote.
func longestQuote(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []any:
		best, bestLen, found := "", -1, false
		for _, p := range val {
			s, ok := p.(string)
			if !ok {
				return "", false
			}
			if n := utf8.RuneCountInString(s); n > bestLen {
				best, bestLen, found = s, n, true
			}
		}
		return best, found
	default:
		return "", false
	}
}
