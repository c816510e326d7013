// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/label-audit/internal/httputil"
	"github.com/pdiddy/label-audit/internal/logging"
	"github.com/pdiddy/label-audit/pkg/types"
)

const chatPath = "/api/chat"

// OllamaBackend sends chat requests to an Ollama server.
type OllamaBackend struct {
	Client     *http.Client
	BaseURL    string
	APIKey     string
	MaxRetries int
	Debug      bool

	limiter *rate.Limiter
}

// NewOllamaBackend builds a backend from model settings. A positive
// RequestsPerSecond enables client-side throttling.
func NewOllamaBackend(cfg types.ModelConfig) *OllamaBackend {
	b := &OllamaBackend{
		Client:     &http.Client{},
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:     cfg.APIKey,
		MaxRetries: cfg.MaxRetries,
		Debug:      cfg.Debug,
	}
	if cfg.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return b
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Seed        int     `json:"seed"`
	Temperature float64 `json:"temperature"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Format   string          `json:"format,omitempty"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

// Chat sends one non-streaming chat request and returns the assistant
// message content.
func (b *OllamaBackend) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	body := ollamaChatRequest{
		Model:    req.Model,
		Messages: []ollamaMessage{{Role: "user", Content: req.Prompt}},
		Stream:   false,
		Options:  ollamaOptions{Seed: req.Seed, Temperature: req.Temperature},
	}
	if req.JSONOnly {
		body.Format = "json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	if b.Debug {
		logging.LogRequest("audit->llm", b.BaseURL, req.Model, payload)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, httpReq, b.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("ollama chat request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ollama response: %w", err)
	}

	if b.Debug {
		logging.LogRequest("llm->audit", b.BaseURL, req.Model, data)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var cr ollamaChatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("parsing ollama response: %w", err)
	}
	if cr.Error != "" {
		return "", fmt.Errorf("ollama error: %s", cr.Error)
	}
	return cr.Message.Content, nil
}
