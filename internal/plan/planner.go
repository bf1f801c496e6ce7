// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan turns a root research question into an ordered set of
// prioritized sub-topics, then a distinct search query per topic. Both steps
// are whole-run-fatal when they fail: later pipeline stages have no valid
// input without them.
package plan

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Generator is the generation capability the planner calls through.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ParseError reports generation output that violates the planning format
// contract. The whole planning call is retried on it; partial output is
// never patched up.
type ParseError struct {
	Reason string
	Line   string
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("parsing topics: %s", e.Reason)
	}
	return fmt.Sprintf("parsing topics: %s (line %q)", e.Reason, e.Line)
}

// topicStart matches the opening of a numbered topic line.
var topicStart = regexp.MustCompile(`^\d+\.`)

// priorityPrefix closes an open topic.
const priorityPrefix = "Priority:"

// Planner decomposes a research question into topics and queries.
type Planner struct {
	gen     Generator
	retries int
	logger  *zap.Logger
}

// NewPlanner returns a Planner that retries a malformed planning call up to
// retries times (default 3). A nil logger disables logging.
func NewPlanner(gen Generator, retries int, logger *zap.Logger) *Planner {
	if retries <= 0 {
		retries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{gen: gen, retries: retries, logger: logger}
}

// PlanTopics asks the generator to decompose question into count prioritized
// topics. Generation failures propagate immediately; malformed output
// retries the whole call up to the configured bound.
func (p *Planner) PlanTopics(ctx context.Context, question string, count int) ([]types.ResearchTopic, error) {
	prompt, err := renderTopicsPrompt(question, count)
	if err != nil {
		return nil, fmt.Errorf("rendering topics prompt: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= p.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reply, err := p.gen.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("planning topics: %w", err)
		}

		topics, err := parseTopics(reply)
		if err == nil {
			return topics, nil
		}
		lastErr = err
		p.logger.Warn("malformed topic plan",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return nil, fmt.Errorf("planning topics after %d attempts: %w", p.retries, lastErr)
}

// PlanQueries fills in a search query for each topic in order. Every prompt
// embeds the comma-joined queries generated so far as an exclusion
// constraint, which makes the loop sequential by construction.
func (p *Planner) PlanQueries(ctx context.Context, question string, topics []types.ResearchTopic) error {
	var previous []string
	for i := range topics {
		prompt, err := renderQueryPrompt(question, topics[i].Text, previous)
		if err != nil {
			return fmt.Errorf("rendering query prompt: %w", err)
		}

		reply, err := p.gen.Generate(ctx, prompt)
		if err != nil {
			return fmt.Errorf("generating query for topic %q: %w", topics[i].Text, err)
		}

		query := cleanQuery(reply)
		if query == "" {
			return fmt.Errorf("empty query generated for topic %q", topics[i].Text)
		}
		topics[i].Query = query
		previous = append(previous, query)
	}
	return nil
}

// parseTopics parses the numbered-list-with-priority contract. A line
// matching ^\d+\. opens a topic; a line starting with "Priority:" closes it.
// A topic still open at the end of the reply is dropped.
func parseTopics(reply string) ([]types.ResearchTopic, error) {
	var topics []types.ResearchTopic
	var open *types.ResearchTopic

	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case topicStart.MatchString(line):
			text := strings.TrimSpace(topicStart.ReplaceAllString(line, ""))
			open = &types.ResearchTopic{Text: text, CreatedAt: time.Now()}
		case strings.HasPrefix(line, priorityPrefix):
			if open == nil {
				return nil, &ParseError{Reason: "priority line with no topic", Line: line}
			}
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, priorityPrefix)))
			if err != nil {
				return nil, &ParseError{Reason: "priority is not an integer", Line: line}
			}
			open.Priority = clampPriority(n)
			topics = append(topics, *open)
			open = nil
		}
	}

	if len(topics) == 0 {
		return nil, &ParseError{Reason: "no topics found"}
	}
	return topics, nil
}

// clampPriority forces n onto the 1..5 scale.
func clampPriority(n int) int {
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

// cleanQuery trims whitespace and surrounding quotes from a generated query.
func cleanQuery(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
