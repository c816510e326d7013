package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/label-audit/internal/httputil"
	"github.com/pdiddy/label-audit/internal/verify"
	"github.com/pdiddy/label-audit/pkg/types"
)

// --- fakes ---

type fakeModel struct {
	response string
	err      error
	block    bool
	panicMsg string
	calls    int
	last     ChatRequest
}

func (f *fakeModel) Chat(ctx context.Context, req ChatRequest) (string, error) {
	f.calls++
	f.last = req
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.response, f.err
}

type savedFact struct {
	runID         string
	interactionID int64
	fact          types.Fact
}

type fakeAudit struct {
	interactions []types.Interaction
	facts        []savedFact
	saveErr      error
	savePanic    string
}

func (a *fakeAudit) LogInteraction(_ context.Context, in types.Interaction) (int64, error) {
	a.interactions = append(a.interactions, in)
	return int64(len(a.interactions)), nil
}

func (a *fakeAudit) SaveFact(_ context.Context, runID string, interactionID int64, fact types.Fact) error {
	if a.savePanic != "" {
		panic(a.savePanic)
	}
	if a.saveErr != nil {
		return a.saveErr
	}
	a.facts = append(a.facts, savedFact{runID: runID, interactionID: interactionID, fact: fact})
	return nil
}

const labelText = "KEYTRUDA is indicated for the treatment of adult patients with unresectable or metastatic melanoma."

func testChunk() types.Chunk {
	return types.NewChunk("keytruda.pdf", 3, labelText)
}

func newTestExtractor(model ChatModel, audit AuditLog) *Extractor {
	return NewExtractor(model, audit, verify.New(85), ExtractorConfig{
		RunID:       "run-1",
		ModelName:   "gemma2:2b",
		Seed:        42,
		Temperature: 0.7,
	})
}

// --- Extract ---

func TestExtract_AcceptsVerifiedQuote(t *testing.T) {
	model := &fakeModel{response: `{"value":"metastatic melanoma","quote_snippet":"indicated for the treatment of adult patients with unresectable or metastatic melanoma","confidence":"HIGH"}`}
	audit := &fakeAudit{}

	out := newTestExtractor(model, audit).Extract(context.Background(), testChunk(), "What is it indicated for?")

	require.Equal(t, Accepted, out.Kind, out.Detail)
	require.NotNil(t, out.Fact)
	assert.Equal(t, "What is it indicated for?", out.Fact.Attribute)
	assert.Equal(t, "metastatic melanoma", out.Fact.Value)
	assert.Equal(t, types.ConfidenceHigh, out.Fact.Confidence)
	assert.False(t, out.Fact.IsNegation)
	assert.True(t, strings.HasPrefix(out.Fact.Reasoning, "Extracted via gemma2:2b in "))
	require.Len(t, out.Fact.Citations, 1)
	assert.Equal(t, types.Citation{DocumentID: "keytruda.pdf", PageNumber: 3, Quote: "indicated for the treatment of adult patients with unresectable or metastatic melanoma"}, out.Fact.Citations[0])
	assert.Equal(t, 100.0, out.Verification.Score)

	require.Len(t, audit.interactions, 1)
	in := audit.interactions[0]
	assert.True(t, in.IsValidJSON)
	assert.Equal(t, "run-1", in.RunID)
	assert.Equal(t, testChunk().ID, in.ChunkID)
	assert.Contains(t, in.PromptSnapshot, labelText)
	assert.Equal(t, model.response, in.RawResponse)

	require.Len(t, audit.facts, 1)
	assert.Equal(t, "run-1", audit.facts[0].runID)
	assert.Equal(t, out.InteractionID, audit.facts[0].interactionID)
}

func TestExtract_RequestIsDeterministic(t *testing.T) {
	model := &fakeModel{response: `{"value":"NOT_FOUND","quote_snippet":""}`}
	ex := newTestExtractor(model, &fakeAudit{})

	ex.Extract(context.Background(), testChunk(), "q")
	first := model.last
	ex.Extract(context.Background(), testChunk(), "q")

	assert.Equal(t, first, model.last)
	assert.Equal(t, 0.0, first.Temperature)
	assert.Equal(t, 42, first.Seed)
	assert.True(t, first.JSONOnly)
	assert.Equal(t, "gemma2:2b", first.Model)
	assert.Contains(t, first.Prompt, "Page 3")
	assert.Contains(t, first.Prompt, "QUESTION: q")
	assert.Contains(t, first.Prompt, NotFoundValue)
}

func TestExtract_ListNormalization(t *testing.T) {
	model := &fakeModel{response: `{"value":["A","B"],"quote_snippet":["melanoma","adult patients with unresectable or metastatic melanoma"]}`}
	audit := &fakeAudit{}

	out := newTestExtractor(model, audit).Extract(context.Background(), testChunk(), "q")

	require.Equal(t, Accepted, out.Kind, out.Detail)
	assert.Equal(t, "A; B", out.Fact.Value)
	assert.Equal(t, "adult patients with unresectable or metastatic melanoma", out.Fact.Citations[0].Quote)
	assert.Equal(t, types.ConfidenceLow, out.Fact.Confidence)
}

func TestExtract_QuoteTieKeepsFirst(t *testing.T) {
	model := &fakeModel{response: `{"value":"x","quote_snippet":["melanoma","KEYTRUDA"],"confidence":"medium"}`}

	out := newTestExtractor(model, &fakeAudit{}).Extract(context.Background(), testChunk(), "q")

	require.Equal(t, Accepted, out.Kind, out.Detail)
	assert.Equal(t, "melanoma", out.Fact.Citations[0].Quote)
	assert.Equal(t, types.ConfidenceMedium, out.Fact.Confidence)
}

func TestExtract_NotFound(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"exact sentinel", `{"value":"NOT_FOUND","quote_snippet":""}`},
		{"sentinel inside value", `{"value":"Answer: NOT_FOUND in text","quote_snippet":"melanoma"}`},
		{"sentinel in list", `{"value":["NOT_FOUND"],"quote_snippet":[""]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit := &fakeAudit{}
			out := newTestExtractor(&fakeModel{response: tt.response}, audit).Extract(context.Background(), testChunk(), "q")

			assert.Equal(t, NotFound, out.Kind)
			assert.Nil(t, out.Fact)
			require.Len(t, audit.interactions, 1)
			assert.True(t, audit.interactions[0].IsValidJSON)
			assert.Empty(t, audit.facts)
		})
	}
}

func TestExtract_LowercaseSentinelIsNotSpecial(t *testing.T) {
	model := &fakeModel{response: `{"value":"not_found","quote_snippet":"no such sentence anywhere"}`}

	out := newTestExtractor(model, &fakeAudit{}).Extract(context.Background(), testChunk(), "q")

	assert.Equal(t, Unverified, out.Kind)
}

func TestExtract_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantValid bool
	}{
		{"not json", `The answer is melanoma.`, false},
		{"truncated json", `{"value":"melanoma"`, false},
		{"missing quote", `{"value":"melanoma"}`, true},
		{"sentinel without quote", `{"value":"NOT_FOUND"}`, true},
		{"numeric value", `{"value":12,"quote_snippet":"melanoma"}`, true},
		{"list with number", `{"value":["a",1],"quote_snippet":"melanoma"}`, true},
		{"empty quote list", `{"value":"melanoma","quote_snippet":[]}`, true},
		{"array response", `["melanoma"]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit := &fakeAudit{}
			out := newTestExtractor(&fakeModel{response: tt.response}, audit).Extract(context.Background(), testChunk(), "q")

			assert.Equal(t, Malformed, out.Kind)
			assert.Nil(t, out.Fact)
			require.Len(t, audit.interactions, 1)
			assert.Equal(t, tt.wantValid, audit.interactions[0].IsValidJSON)
			assert.Equal(t, tt.response, audit.interactions[0].RawResponse)
			assert.Empty(t, audit.facts)
		})
	}
}

func TestExtract_Unverified(t *testing.T) {
	model := &fakeModel{response: `{"value":"lung cancer","quote_snippet":"Opdivo is indicated for lung cancer","confidence":"high"}`}
	audit := &fakeAudit{}

	out := newTestExtractor(model, audit).Extract(context.Background(), testChunk(), "q")

	assert.Equal(t, Unverified, out.Kind)
	assert.Nil(t, out.Fact)
	assert.False(t, out.Verification.Verified)
	assert.Less(t, out.Verification.Score, 85.0)
	require.Len(t, audit.interactions, 1)
	assert.Empty(t, audit.facts)
}

func TestExtract_ModelError(t *testing.T) {
	audit := &fakeAudit{}
	out := newTestExtractor(&fakeModel{err: errors.New("connection refused")}, audit).Extract(context.Background(), testChunk(), "q")

	assert.Equal(t, Failed, out.Kind)
	assert.Contains(t, out.Detail, "connection refused")
	require.Len(t, audit.interactions, 1)
	assert.False(t, audit.interactions[0].IsValidJSON)
	assert.Equal(t, "connection refused", audit.interactions[0].RawResponse)
	assert.Equal(t, int64(1), out.InteractionID)
}

func TestExtract_Timeout(t *testing.T) {
	audit := &fakeAudit{}
	ex := NewExtractor(&fakeModel{block: true}, audit, nil, ExtractorConfig{
		RunID:          "run-1",
		ModelName:      "m",
		RequestTimeout: 10 * time.Millisecond,
	})

	out := ex.Extract(context.Background(), testChunk(), "q")

	assert.Equal(t, Failed, out.Kind)
	assert.Contains(t, out.Detail, "timed out")
	require.Len(t, audit.interactions, 1)
	assert.False(t, audit.interactions[0].IsValidJSON)
	assert.Empty(t, audit.facts)
}

func TestExtract_SaveFactError(t *testing.T) {
	model := &fakeModel{response: `{"value":"melanoma","quote_snippet":"metastatic melanoma"}`}
	audit := &fakeAudit{saveErr: errors.New("disk full")}

	out := newTestExtractor(model, audit).Extract(context.Background(), testChunk(), "q")

	assert.Equal(t, Failed, out.Kind)
	assert.Nil(t, out.Fact)
	assert.Contains(t, out.Detail, "disk full")
	assert.Len(t, audit.interactions, 1)
}

func TestExtract_PanicBecomesFailed(t *testing.T) {
	audit := &fakeAudit{}

	var out Outcome
	require.NotPanics(t, func() {
		out = newTestExtractor(&fakeModel{panicMsg: "boom"}, audit).Extract(context.Background(), testChunk(), "q")
	})

	assert.Equal(t, Failed, out.Kind)
	assert.Contains(t, out.Detail, "boom")
	require.Len(t, audit.interactions, 1)
	assert.False(t, audit.interactions[0].IsValidJSON)
}

func TestExtract_PanicAfterLoggingKeepsInteraction(t *testing.T) {
	model := &fakeModel{response: `{"value":"melanoma","quote_snippet":"metastatic melanoma","confidence":"high"}`}
	audit := &fakeAudit{savePanic: "driver crashed"}

	var out Outcome
	require.NotPanics(t, func() {
		out = newTestExtractor(model, audit).Extract(context.Background(), testChunk(), "q")
	})

	assert.Equal(t, Failed, out.Kind)
	assert.Contains(t, out.Detail, "driver crashed")
	assert.Nil(t, out.Fact)
	require.Len(t, audit.interactions, 1, "no second interaction for the same call")
	assert.True(t, audit.interactions[0].IsValidJSON)
	assert.Equal(t, int64(1), out.InteractionID)
	assert.True(t, out.Verification.Verified)
}

func TestExtract_FactsNeverOutnumberValidInteractions(t *testing.T) {
	responses := []string{
		`{"value":"melanoma","quote_snippet":"metastatic melanoma"}`,
		`not json`,
		`{"value":"NOT_FOUND","quote_snippet":""}`,
		`{"value":"x","quote_snippet":"a sentence that is nowhere in the label"}`,
		`{"value":"adults","quote_snippet":"adult patients"}`,
	}
	audit := &fakeAudit{}
	model := &fakeModel{}
	ex := newTestExtractor(model, audit)

	for _, r := range responses {
		model.response = r
		ex.Extract(context.Background(), testChunk(), "q")
	}

	assert.Len(t, audit.interactions, len(responses))
	valid := 0
	for _, in := range audit.interactions {
		if in.IsValidJSON {
			valid++
		}
	}
	assert.Equal(t, 4, valid)
	assert.Len(t, audit.facts, 2)
	assert.LessOrEqual(t, len(audit.facts), valid)
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "malformed", Malformed.String())
	assert.Equal(t, "unverified", Unverified.String())
	assert.Equal(t, "failed", Failed.String())
}

// --- Ollama backend ---

func TestOllamaBackend_Chat(t *testing.T) {
	var got ollamaChatRequest
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatPath, r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"value\":\"x\"}"},"done":true}`))
	}))
	defer ts.Close()

	b := NewOllamaBackend(types.ModelConfig{BaseURL: ts.URL + "/", APIKey: "secret"})
	content, err := b.Chat(context.Background(), ChatRequest{Model: "gemma2:2b", Prompt: "hello", Seed: 42, JSONOnly: true})
	require.NoError(t, err)

	assert.Equal(t, `{"value":"x"}`, content)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "gemma2:2b", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.Equal(t, 42, got.Options.Seed)
	assert.Equal(t, 0.0, got.Options.Temperature)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, ollamaMessage{Role: "user", Content: "hello"}, got.Messages[0])
}

func TestOllamaBackend_RetriesBusyServer(t *testing.T) {
	old := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	defer func() { httputil.RetryBaseDelay = old }()

	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"}}`))
	}))
	defer ts.Close()

	b := NewOllamaBackend(types.ModelConfig{BaseURL: ts.URL})
	content, err := b.Chat(context.Background(), ChatRequest{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOllamaBackend_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"model missing", http.StatusNotFound, `{"error":"model not found"}`, "HTTP 404"},
		{"error field", http.StatusOK, `{"error":"out of memory"}`, "out of memory"},
		{"bad body", http.StatusOK, `<html>`, "parsing ollama response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := NewOllamaBackend(types.ModelConfig{BaseURL: ts.URL}).Chat(context.Background(), ChatRequest{Model: "m"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewOllamaBackend_RateLimit(t *testing.T) {
	assert.Nil(t, NewOllamaBackend(types.ModelConfig{}).limiter)
	assert.NotNil(t, NewOllamaBackend(types.ModelConfig{RequestsPerSecond: 2}).limiter)
}
