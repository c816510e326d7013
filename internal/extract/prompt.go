// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/label-audit/pkg/types"
)

// NotFoundValue is the sentinel value the model returns when the text does not
// answer the question.
const NotFoundValue = "NOT_FOUND"

// extractionPromptTmpl is the instruction sent for every (chunk, question)
// pair. Rendering is a pure function of its inputs so identical chunks and
// questions produce byte-identical prompts.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are an expert FDA Regulatory Analyst.
TASK: Extract the answer to the QUESTION below based ONLY on the provided TEXT context.

RULES:
1. If the answer is not clearly stated in the text, return JSON with value="{{.NotFound}}".
2. "quote_snippet" MUST be a single, contiguous string exactly as it appears in the text.
3. DO NOT combine separate sentences into one quote. Pick the single best sentence.
4. Output must be valid JSON only.

TEXT CONTEXT (Page {{.Page}}):
{{.Text}}

QUESTION: {{.Question}}

JSON SCHEMA:
{
    "value": "The extracted fact (string)",
    "quote_snippet": "exact substring from text (string)",
    "confidence": "high|medium|low"
}
`))

// renderPrompt executes the extraction prompt template for one chunk and question.
func renderPrompt(chunk types.Chunk, question string) (string, error) {
	var buf bytes.Buffer
	err := extractionPromptTmpl.Execute(&buf, struct {
		NotFound string
		Page     int
		Text     string
		Question string
	}{
		NotFound: NotFoundValue,
		Page:     chunk.PageNumber,
		Text:     chunk.Text,
		Question: question,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
