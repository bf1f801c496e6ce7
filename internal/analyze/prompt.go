// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// documentPromptTmpl is the prompt sent for each document of a topic. The
// content slot carries fetched full text when available, otherwise the
// abstract, truncated to maxContentChars.
var documentPromptTmpl = template.Must(template.New("document").Parse(`You are a research analyst studying documents for a larger investigation.

Root question: {{.Question}}
Current topic: {{.Topic}}

Document title: {{.Title}}

Document content:
{{.Content}}

Analyze how this document bears on the current topic. Cover its main claims, the evidence offered for them, and any stated limitations. Respond with the analysis text only, no preamble.
`))

// summaryPromptTmpl distills a topic's per-document analyses into one summary.
// When a topic produced no documents the template says so and asks for a
// summary grounded in the topic statement alone.
var summaryPromptTmpl = template.Must(template.New("summary").Parse(`You are synthesizing research findings on a single topic.

Root question: {{.Question}}
Current topic: {{.Topic}}

{{if .Analyses}}Document analyses:

{{.Analyses}}{{else}}No relevant documents were found for this topic.{{end}}

Write a concise summary of what is established about the current topic. Respond with the summary text only, no preamble.
`))

// directionPromptTmpl asks for exactly one forward-looking research direction.
var directionPromptTmpl = template.Must(template.New("direction").Parse(`You are identifying follow-up research directions.

Root question: {{.Question}}
Current topic: {{.Topic}}

Topic summary:
{{.Summary}}

Propose one new research direction that this summary raises but does not answer. Respond with a single sentence stating the direction, nothing else.
`))

// renderDocumentPrompt fills the document analysis prompt for one document.
func renderDocumentPrompt(question string, topic types.ResearchTopic, doc types.Document) (string, error) {
	var buf bytes.Buffer
	err := documentPromptTmpl.Execute(&buf, struct {
		Question string
		Topic    string
		Title    string
		Content  string
	}{
		Question: question,
		Topic:    topic.Text,
		Title:    doc.Title,
		Content:  docContent(doc),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderSummaryPrompt fills the topic summary prompt. analyses may be empty.
func renderSummaryPrompt(question string, topic types.ResearchTopic, analyses []string) (string, error) {
	var buf bytes.Buffer
	err := summaryPromptTmpl.Execute(&buf, struct {
		Question string
		Topic    string
		Analyses string
	}{
		Question: question,
		Topic:    topic.Text,
		Analyses: strings.Join(analyses, "\n\n---\n\n"),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderDirectionPrompt fills the new-direction prompt from the topic summary.
func renderDirectionPrompt(question string, topic types.ResearchTopic, summary string) (string, error) {
	var buf bytes.Buffer
	err := directionPromptTmpl.Execute(&buf, struct {
		Question string
		Topic    string
		Summary  string
	}{
		Question: question,
		Topic:    topic.Text,
		Summary:  summary,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// docContent selects the text to analyze for a document, preferring fetched
// full content over the abstract, truncated to maxContentChars.
func docContent(doc types.Document) string {
	content := doc.LocalContent
	if content == "" {
		content = doc.Abstract
	}
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}
	return content
}
