// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// geminiAPIBase is a variable so tests can substitute an httptest server.
var geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiBackend calls the Gemini generateContent API.
type GeminiBackend struct {
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

// Name identifies this backend.
func (b *GeminiBackend) Name() string { return "gemini" }

// geminiRequest is the request body for generateContent.
type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

// geminiContent is one turn of content parts.
type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

// geminiPart is a single text part.
type geminiPart struct {
	Text string `json:"text"`
}

// geminiGenerationConfig carries per-call generation settings.
type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

// geminiResponse is the response body from generateContent.
type geminiResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

// geminiCandidate is one candidate completion.
type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

// geminiUsageMetadata is the token accounting in the response.
type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Complete sends prompt as a single content part and returns the first
// candidate's concatenated text with the reported usage.
func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (Completion, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: b.MaxTokens},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", geminiAPIBase, b.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return Completion{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", b.APIKey)

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Completion{}, &Error{Class: ClassTransient, Op: b.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Completion{}, apiError(b.Name(), resp.StatusCode, resp.Body)
	}

	var gResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return Completion{}, fmt.Errorf("decoding gemini response: %w", err)
	}

	var text string
	if len(gResp.Candidates) > 0 {
		for _, part := range gResp.Candidates[0].Content.Parts {
			text += part.Text
		}
	}
	if text == "" {
		return Completion{}, &Error{Class: ClassTransient, Op: b.Name(), Err: fmt.Errorf("empty completion content")}
	}

	usage := types.TokenUsage{
		InputTokens:  gResp.UsageMetadata.PromptTokenCount,
		OutputTokens: gResp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:  gResp.UsageMetadata.TotalTokenCount,
		Timestamp:    now(),
	}
	return Completion{Text: text, Usage: usage}, nil
}
