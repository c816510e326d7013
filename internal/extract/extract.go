// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract asks a language model one question about one chunk of
// label text and accepts the answer only when its supporting quote can be
// found in that chunk. Every model call is recorded in the audit log.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/label-audit/internal/verify"
	"github.com/pdiddy/label-audit/pkg/types"
)

// ChatRequest is one prompt sent to the model.
type ChatRequest struct {
	Model       string
	Prompt      string
	Seed        int
	Temperature float64
	JSONOnly    bool
}

// ChatModel abstracts the model server so tests can supply a fake.
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// AuditLog is the append-only record the extractor writes to.
type AuditLog interface {
	LogInteraction(ctx context.Context, in types.Interaction) (int64, error)
	SaveFact(ctx context.Context, runID string, interactionID int64, fact types.Fact) error
}

// ExtractorConfig holds the per-run values the extractor stamps on every
// request and record.
type ExtractorConfig struct {
	RunID     string
	ModelName string
	Seed      int

	// Temperature is recorded but never sent; requests always use 0.
	Temperature float64

	// RequestTimeout bounds one model call. Zero means no bound.
	RequestTimeout time.Duration
}

// OutcomeKind classifies how an extraction ended.
type OutcomeKind int

const (
	Accepted OutcomeKind = iota
	NotFound
	Malformed
	Unverified
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case NotFound:
		return "not_found"
	case Malformed:
		return "malformed"
	case Unverified:
		return "unverified"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one Extract call. Fact is set only for
// Accepted. InteractionID is 0 when no interaction was recorded.
type Outcome struct {
	Kind          OutcomeKind
	Fact          *types.Fact
	InteractionID int64
	Latency       time.Duration
	Verification  verify.Result
	Detail        string
}

// Extractor runs the prompt, parse, verify, persist sequence for one
// chunk and question at a time.
type Extractor struct {
	model    ChatModel
	audit    AuditLog
	verifier *verify.Verifier
	cfg      ExtractorConfig
}

// NewExtractor wires an extractor. A nil verifier uses the default
// threshold.
func NewExtractor(model ChatModel, audit AuditLog, verifier *verify.Verifier, cfg ExtractorConfig) *Extractor {
	if verifier == nil {
		verifier = verify.New(verify.DefaultThreshold)
	}
	return &Extractor{model: model, audit: audit, verifier: verifier, cfg: cfg}
}

// Extract asks question of chunk. It never returns an error; every failure
// is reported through the Outcome kind.
func (e *Extractor) Extract(ctx context.Context, chunk types.Chunk, question string) (out Outcome) {
	var (
		prompt   string
		logged   bool
		loggedID int64
	)

	record := func(raw string, valid bool, latency time.Duration) (int64, error) {
		logged = true
		id, err := e.audit.LogInteraction(ctx, types.Interaction{
			RunID:          e.cfg.RunID,
			ChunkID:        chunk.ID,
			Question:       question,
			PromptSnapshot: prompt,
			RawResponse:    raw,
			IsValidJSON:    valid,
			Latency:        latency,
		})
		if err == nil {
			loggedID = id
		}
		return id, err
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		detail := fmt.Sprintf("panic: %v", r)
		out.Kind = Failed
		out.Fact = nil
		out.Detail = detail
		if !logged {
			record(detail, false, 0)
		}
		out.InteractionID = loggedID
	}()

	prompt, err := renderPrompt(chunk, question)
	if err != nil {
		return Outcome{Kind: Failed, Detail: fmt.Sprintf("rendering prompt: %v", err)}
	}

	callCtx := ctx
	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := e.model.Chat(callCtx, ChatRequest{
		Model:       e.cfg.ModelName,
		Prompt:      prompt,
		Seed:        e.cfg.Seed,
		Temperature: 0,
		JSONOnly:    true,
	})
	latency := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("model call timed out after %s: %w", e.cfg.RequestTimeout, err)
		}
		id, logErr := record(err.Error(), false, latency)
		return Outcome{Kind: Failed, InteractionID: id, Latency: latency, Detail: joinDetail(err, logErr)}
	}

	decoded, parseErr := parseResponse(raw)
	if parseErr != nil {
		id, logErr := record(raw, false, latency)
		if logErr != nil {
			return Outcome{Kind: Failed, Latency: latency, Detail: joinDetail(parseErr, logErr)}
		}
		return Outcome{Kind: Malformed, InteractionID: id, Latency: latency, Detail: parseErr.Error()}
	}

	id, logErr := record(raw, true, latency)
	if logErr != nil {
		return Outcome{Kind: Failed, Latency: latency, Detail: fmt.Sprintf("logging interaction: %v", logErr)}
	}
	out = Outcome{InteractionID: id, Latency: latency}

	answer, err := harden(decoded)
	if err != nil {
		out.Kind = Malformed
		out.Detail = err.Error()
		return out
	}

	if strings.Contains(answer.Value, NotFoundValue) {
		out.Kind = NotFound
		out.Detail = "model reported no answer"
		return out
	}

	out.Verification = e.verifier.Verify(chunk.Text, answer.Quote)
	if !out.Verification.Verified {
		out.Kind = Unverified
		out.Detail = fmt.Sprintf("quote score %.2f below threshold %.2f", out.Verification.Score, e.verifier.Threshold())
		return out
	}

	fact := types.Fact{
		Attribute:  question,
		Value:      answer.Value,
		IsNegation: false,
		Confidence: answer.Confidence,
		Reasoning:  fmt.Sprintf("Extracted via %s in %.2fs", e.cfg.ModelName, latency.Seconds()),
		Citations: []types.Citation{{
			DocumentID: chunk.DocumentName,
			PageNumber: chunk.PageNumber,
			Quote:      answer.Quote,
		}},
	}

	if err := e.audit.SaveFact(ctx, e.cfg.RunID, id, fact); err != nil {
		out.Kind = Failed
		out.Detail = fmt.Sprintf("saving fact: %v", err)
		return out
	}

	out.Kind = Accepted
	out.Fact = &fact
	out.Detail = out.Verification.Detail
	return out
}

func joinDetail(err, logErr error) string {
	if logErr == nil {
		return err.Error()
	}
	return fmt.Sprintf("%v; logging interaction: %v", err, logErr)
}
