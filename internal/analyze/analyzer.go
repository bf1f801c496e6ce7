// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze produces the per-topic analysis: one generation call per
// filtered document, a topic summary over the collected analyses, and a
// single proposed new research direction. All calls for one topic run
// sequentially; concurrency across topics belongs to the pipeline.
package analyze

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// maxContentChars bounds the document text included in an analysis prompt.
const maxContentChars = 8000

// Generator is the generation capability the analyzer calls through.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Analyzer turns one topic with its final document set into a TopicAnalysis.
type Analyzer struct {
	gen    Generator
	logger *zap.Logger
}

// NewAnalyzer returns an Analyzer. A nil logger disables logging.
func NewAnalyzer(gen Generator, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{gen: gen, logger: logger}
}

// Analyze works through the topic's documents in order, then distills a
// topic summary and one new research direction. A topic with no documents
// skips the document loop but still receives a summary and direction from
// the topic statement alone. Any failed call aborts the topic with the
// topic identity in the error.
func (a *Analyzer) Analyze(ctx context.Context, question string, topic types.ResearchTopic) (types.TopicAnalysis, error) {
	analysis := types.TopicAnalysis{Topic: topic}

	for i, doc := range topic.Documents {
		if err := ctx.Err(); err != nil {
			return types.TopicAnalysis{}, err
		}

		text, err := a.analyzeDocument(ctx, question, topic, doc)
		if err != nil {
			return types.TopicAnalysis{}, fmt.Errorf("analyzing document %q for topic %q: %w", doc.Title, topic.Text, err)
		}
		analysis.DocumentAnalyses = append(analysis.DocumentAnalyses, text)

		a.logger.Debug("document analyzed",
			zap.String("topic", topic.Text),
			zap.Int("document", i+1),
			zap.Int("of", len(topic.Documents)))
	}

	summary, err := a.summarize(ctx, question, topic, analysis.DocumentAnalyses)
	if err != nil {
		return types.TopicAnalysis{}, fmt.Errorf("summarizing topic %q: %w", topic.Text, err)
	}
	analysis.TopicSummary = summary

	direction, err := a.proposeDirection(ctx, question, topic, summary)
	if err != nil {
		return types.TopicAnalysis{}, fmt.Errorf("proposing direction for topic %q: %w", topic.Text, err)
	}
	analysis.NewDirection = direction

	a.logger.Info("topic analyzed",
		zap.String("topic", topic.Text),
		zap.Int("documents", len(analysis.DocumentAnalyses)))
	return analysis, nil
}

func (a *Analyzer) analyzeDocument(ctx context.Context, question string, topic types.ResearchTopic, doc types.Document) (string, error) {
	prompt, err := renderDocumentPrompt(question, topic, doc)
	if err != nil {
		return "", fmt.Errorf("rendering document prompt: %w", err)
	}
	reply, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (a *Analyzer) summarize(ctx context.Context, question string, topic types.ResearchTopic, analyses []string) (string, error) {
	prompt, err := renderSummaryPrompt(question, topic, analyses)
	if err != nil {
		return "", fmt.Errorf("rendering summary prompt: %w", err)
	}
	reply, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (a *Analyzer) proposeDirection(ctx context.Context, question string, topic types.ResearchTopic, summary string) (string, error) {
	prompt, err := renderDirectionPrompt(question, topic, summary)
	if err != nil {
		return "", fmt.Errorf("rendering direction prompt: %w", err)
	}
	reply, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
