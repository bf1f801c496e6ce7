// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures for the research-assistant
// pipeline: topics, documents, analyses, aggregated results, and the token
// accounting record exchanged between the generation client and rate limiter.
package types

import "time"

// ResearchTopic is one sub-question derived from the root research question.
// Created by the topic planner; Query is filled by query planning and
// Documents by relevance filtering. Once analysis of a topic begins the
// value is treated as immutable.
type ResearchTopic struct {
	// Text is the topic statement, trimmed of any list numbering.
	Text string `json:"text" yaml:"text"`

	// Priority weights the topic from 1 (lowest) to 5 (highest).
	Priority int `json:"priority" yaml:"priority"`

	// Query is the document-source search query generated for this topic.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`

	// CreatedAt records when the planner produced the topic.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Documents holds the final filtered documents, in filter order.
	Documents []Document `json:"documents,omitempty" yaml:"documents,omitempty"`
}

// Document is a candidate source document returned by the document source.
// Only title, authors, abstract, and URL come from search; LocalContent is
// filled by the content fetcher for documents surviving the abstract pass.
type Document struct {
	// Title is the document title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the document authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the document abstract or summary.
	Abstract string `json:"abstract" yaml:"abstract"`

	// SourceURL is the canonical URL of the document.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// LocalContent is the fetched full text, empty until fetched.
	LocalContent string `json:"local_content,omitempty" yaml:"local_content,omitempty"`
}

// TopicAnalysis is the completed analysis of one topic. It is owned by the
// worker that produced it and never mutated afterwards. DocumentAnalyses is
// positionally parallel to Topic.Documents.
type TopicAnalysis struct {
	// Topic is the analyzed topic, including its final document set.
	Topic ResearchTopic `json:"topic" yaml:"topic"`

	// DocumentAnalyses holds one analysis per document, in document order.
	DocumentAnalyses []string `json:"document_analyses" yaml:"document_analyses"`

	// TopicSummary synthesizes the per-document analyses.
	TopicSummary string `json:"topic_summary,omitempty" yaml:"topic_summary,omitempty"`

	// NewDirection is one proposed forward-looking research direction.
	NewDirection string `json:"new_direction,omitempty" yaml:"new_direction,omitempty"`
}

// ResearchResult is the aggregated outcome of one research run. Analyses is
// stored in completion order, which is non-deterministic; callers must treat
// it as an unordered set keyed by topic.
type ResearchResult struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id" yaml:"run_id"`

	// RootQuestion is the question the run was started with.
	RootQuestion string `json:"root_question" yaml:"root_question"`

	// Analyses holds one entry per topic that survived analysis.
	Analyses []TopicAnalysis `json:"analyses" yaml:"analyses"`

	// FinalSummary is an optional cross-topic synthesis.
	FinalSummary string `json:"final_summary,omitempty" yaml:"final_summary,omitempty"`

	// CreatedAt records when the run started.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// CompletedAt records when aggregation finished.
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
}

// TokenUsage is the token accounting for one generation call, as reported by
// the backend. It feeds the rate limiter and aggregate counters and is then
// discarded.
type TokenUsage struct {
	// InputTokens counts prompt tokens.
	InputTokens int `json:"input_tokens" yaml:"input_tokens"`

	// OutputTokens counts completion tokens.
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`

	// TotalTokens is the backend-reported total, or input+output when the
	// backend does not report one.
	TotalTokens int `json:"total_tokens" yaml:"total_tokens"`

	// Timestamp records when the call completed.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Total returns the total token count, deriving it from the parts when the
// backend did not report one.
func (u TokenUsage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}
