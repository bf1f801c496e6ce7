// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides the generation client every pipeline stage calls
// through, its provider backends, and the retry and error-classification
// machinery around them. The client composes the shared rate limiter and the
// retrier so that token admission and backoff policy live in exactly one
// place.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/ratelimit"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// charsPerToken is the fixed prompt-cost heuristic. It is a deliberately
// coarse approximation, not a tokenizer; the rate limiter's accounting is
// corrected by actual usage after each call.
const charsPerToken = 4

// defaultMaxOutputTokens caps completion length when configuration leaves
// it unset.
const defaultMaxOutputTokens = 4096

// Backend generates text for a prompt. Implementations wrap one provider
// API and classify their failures via *Error.
type Backend interface {
	// Name identifies the backend (e.g. "anthropic").
	Name() string

	// Complete sends the prompt and returns the completion text together
	// with the usage the provider reported.
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// Completion is one backend response.
type Completion struct {
	Text  string
	Usage types.TokenUsage
}

// EstimateTokens returns the estimated token cost of prompt, never less
// than one.
func EstimateTokens(prompt string) int {
	n := len(prompt) / charsPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// NewBackend selects a backend implementation from configuration. The
// provider is resolved exactly once here; no pipeline code branches on it.
func NewBackend(cfg types.GenerationConfig) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing API key for provider %q", cfg.Provider)
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	client := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case "anthropic":
		return &AnthropicBackend{APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: maxTokens, Client: client}, nil
	case "openai":
		return &OpenAIBackend{APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: maxTokens, Client: client}, nil
	case "gemini":
		return &GeminiBackend{APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: maxTokens, Client: client}, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q: use anthropic, openai, or gemini", cfg.Provider)
	}
}

// Client is the single choke-point through which every prompt is sent. It
// reserves the estimated cost with the shared rate limiter, executes the
// call through the retrier, and records actual usage afterwards. All
// concurrent pipeline workers synchronize through this path and nowhere
// else.
type Client struct {
	backend Backend
	limiter *ratelimit.Limiter
	retrier Retrier
	logger  *zap.Logger

	calls       atomic.Int64
	totalTokens atomic.Int64
}

// NewClient returns a Client wired to backend and limiter. A nil logger
// disables logging.
func NewClient(backend Backend, limiter *ratelimit.Limiter, retrier Retrier, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		backend: backend,
		limiter: limiter,
		retrier: retrier,
		logger:  logger,
	}
}

// Generate sends prompt to the backend and returns the completion text.
// It blocks inside the rate limiter until the estimated cost fits in the
// rolling window, then retries transient failures with backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	estimate := EstimateTokens(prompt)
	if err := c.limiter.Reserve(ctx, estimate); err != nil {
		return "", fmt.Errorf("reserving %d tokens: %w", estimate, err)
	}

	var comp Completion
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		var callErr error
		comp, callErr = c.backend.Complete(ctx, prompt)
		return callErr
	})
	if err != nil {
		return "", err
	}

	c.limiter.Record(comp.Usage)
	c.calls.Add(1)
	c.totalTokens.Add(int64(comp.Usage.Total()))
	c.logger.Debug("generation call completed",
		zap.String("backend", c.backend.Name()),
		zap.Int("estimated_tokens", estimate),
		zap.Int("actual_tokens", comp.Usage.Total()),
		zap.Int("available_tokens", c.limiter.Available()))

	return comp.Text, nil
}

// Stats returns the number of completed calls and the total tokens they
// consumed.
func (c *Client) Stats() (calls, totalTokens int64) {
	return c.calls.Load(), c.totalTokens.Load()
}

// now is the timestamp source for backend usage records.
var now = time.Now
