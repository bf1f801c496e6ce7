// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter narrows a topic's candidate documents through a two-stage
// funnel: a coarse title pass over every collected candidate, then a fine
// abstract pass over the shortlist. Full content is fetched only for the
// documents that survive both passes.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/collect"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	defaultShortlistSize = 6
	defaultFinalSize     = 3
)

// Generator is the generation capability the filter calls through.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ParseError reports a filter reply that could not be read as a JSON index
// array. It fails the topic it occurred in, never the whole run.
type ParseError struct {
	Stage string
	Reply string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s pass: parsing index array: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Filter runs the two-stage relevance funnel for one topic at a time.
type Filter struct {
	gen           Generator
	fetcher       collect.ContentFetcher
	shortlistSize int
	finalSize     int
	logger        *zap.Logger
}

// NewFilter returns a Filter keeping up to shortlistSize titles (default 6)
// and finalSize final documents (default 3). A nil fetcher leaves documents
// on their abstracts; a nil logger disables logging.
func NewFilter(gen Generator, fetcher collect.ContentFetcher, shortlistSize, finalSize int, logger *zap.Logger) *Filter {
	if shortlistSize <= 0 {
		shortlistSize = defaultShortlistSize
	}
	if finalSize <= 0 {
		finalSize = defaultFinalSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{
		gen:           gen,
		fetcher:       fetcher,
		shortlistSize: shortlistSize,
		finalSize:     finalSize,
		logger:        logger,
	}
}

// FilterTopic selects the final document set for topic out of candidates.
// Candidates span every topic's collection results; indices in generation
// replies refer to positions in that shared read-only list.
func (f *Filter) FilterTopic(ctx context.Context, topic types.ResearchTopic, candidates []types.Document) ([]types.Document, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	shortlist, err := f.titlePass(ctx, topic, candidates)
	if err != nil {
		return nil, err
	}
	if len(shortlist) == 0 {
		// Never send the backend an empty listing; the topic proceeds
		// with zero documents.
		f.logger.Info("empty shortlist",
			zap.String("topic", topic.Text))
		return nil, nil
	}

	final, err := f.abstractPass(ctx, topic, shortlist)
	if err != nil {
		return nil, err
	}

	f.fetchContent(ctx, final)
	return final, nil
}

// titlePass asks for the indices of the titles most relevant to the topic.
func (f *Filter) titlePass(ctx context.Context, topic types.ResearchTopic, candidates []types.Document) ([]types.Document, error) {
	prompt, err := renderTitlePrompt(topic.Text, candidates, f.shortlistSize)
	if err != nil {
		return nil, fmt.Errorf("rendering title prompt: %w", err)
	}

	reply, err := f.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("title pass for topic %q: %w", topic.Text, err)
	}

	indices, err := parseIndexArray(reply)
	if err != nil {
		return nil, &ParseError{Stage: "title", Reply: reply, Err: err}
	}
	return resolveIndices(candidates, indices, f.shortlistSize), nil
}

// abstractPass asks for the best shortlist entries by abstract relevance.
func (f *Filter) abstractPass(ctx context.Context, topic types.ResearchTopic, shortlist []types.Document) ([]types.Document, error) {
	prompt, err := renderAbstractPrompt(topic.Text, shortlist, f.finalSize)
	if err != nil {
		return nil, fmt.Errorf("rendering abstract prompt: %w", err)
	}

	reply, err := f.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("abstract pass for topic %q: %w", topic.Text, err)
	}

	indices, err := parseIndexArray(reply)
	if err != nil {
		return nil, &ParseError{Stage: "abstract", Reply: reply, Err: err}
	}
	return resolveIndices(shortlist, indices, f.finalSize), nil
}

// fetchContent fills LocalContent for the final set. A fetch failure is
// logged and the document proceeds on its abstract alone.
func (f *Filter) fetchContent(ctx context.Context, docs []types.Document) {
	if f.fetcher == nil {
		return
	}
	for i := range docs {
		content, err := f.fetcher.FetchContent(ctx, docs[i])
		if err != nil {
			f.logger.Warn("content fetch failed",
				zap.String("title", docs[i].Title),
				zap.Error(err))
			continue
		}
		docs[i].LocalContent = content
	}
}

// parseIndexArray locates and decodes the JSON integer array in a reply
// that may wrap it in prose or code fences.
func parseIndexArray(reply string) ([]int, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in reply")
	}

	var indices []int
	if err := json.Unmarshal([]byte(reply[start:end+1]), &indices); err != nil {
		return nil, err
	}
	return indices, nil
}

// resolveIndices maps reply indices onto docs, dropping out-of-range and
// duplicate indices and capping the result at limit.
func resolveIndices(docs []types.Document, indices []int, limit int) []types.Document {
	seen := make(map[int]bool, len(indices))
	var out []types.Document
	for _, idx := range indices {
		if idx < 0 || idx >= len(docs) || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, docs[idx])
		if len(out) == limit {
			break
		}
	}
	return out
}
