// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders completed research runs as Markdown.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Render produces a Markdown report for one research run.
func Render(result types.ResearchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Research Report\n\n")
	fmt.Fprintf(&b, "**Question:** %s\n\n", result.RootQuestion)
	fmt.Fprintf(&b, "**Run ID:** `%s`\n\n", result.RunID)
	if !result.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "**Started:** %s\n\n", formatTime(result.CreatedAt))
	}
	if !result.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "**Completed:** %s\n\n", formatTime(result.CompletedAt))
	}
	fmt.Fprintf(&b, "**Topics analyzed:** %d\n", len(result.Analyses))

	if len(result.Analyses) == 0 {
		fmt.Fprintf(&b, "\nNo topics produced analyses in this run.\n")
		return b.String()
	}

	for i, analysis := range result.Analyses {
		writeTopic(&b, i+1, analysis)
	}

	if directions := collectDirections(result.Analyses); len(directions) > 0 {
		fmt.Fprintf(&b, "\n## Proposed Directions\n\n")
		for _, d := range directions {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	if result.FinalSummary != "" {
		fmt.Fprintf(&b, "\n## Overall Summary\n\n%s\n", result.FinalSummary)
	}

	return b.String()
}

func writeTopic(b *strings.Builder, n int, analysis types.TopicAnalysis) {
	topic := analysis.Topic

	fmt.Fprintf(b, "\n## %d. %s\n\n", n, topic.Text)
	fmt.Fprintf(b, "*Priority %d", topic.Priority)
	if topic.Query != "" {
		fmt.Fprintf(b, ". Query: `%s`", topic.Query)
	}
	fmt.Fprintf(b, "*\n")

	if len(topic.Documents) > 0 {
		fmt.Fprintf(b, "\n### Sources\n\n")
		for _, doc := range topic.Documents {
			fmt.Fprintf(b, "- **%s**", doc.Title)
			if len(doc.Authors) > 0 {
				fmt.Fprintf(b, " by %s", formatAuthors(doc.Authors))
			}
			if doc.SourceURL != "" {
				fmt.Fprintf(b, " ([source](%s))", doc.SourceURL)
			}
			fmt.Fprintf(b, "\n")
		}

		fmt.Fprintf(b, "\n### Document Analyses\n")
		for i, doc := range topic.Documents {
			if i >= len(analysis.DocumentAnalyses) || analysis.DocumentAnalyses[i] == "" {
				continue
			}
			fmt.Fprintf(b, "\n**%s**\n\n%s\n", doc.Title, analysis.DocumentAnalyses[i])
		}
	}

	if analysis.TopicSummary != "" {
		fmt.Fprintf(b, "\n### Summary\n\n%s\n", analysis.TopicSummary)
	}
	if analysis.NewDirection != "" {
		fmt.Fprintf(b, "\n### Proposed Direction\n\n%s\n", analysis.NewDirection)
	}
}

// collectDirections gathers the non-empty per-topic directions in order.
func collectDirections(analyses []types.TopicAnalysis) []string {
	var out []string
	for _, a := range analyses {
		if a.NewDirection != "" {
			out = append(out, a.NewDirection)
		}
	}
	return out
}

func formatAuthors(authors []string) string {
	if len(authors) > 3 {
		return strings.Join(authors[:3], ", ") + " et al."
	}
	return strings.Join(authors, ", ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
