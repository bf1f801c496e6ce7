// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"bytes"
	"strings"
	"text/template"
)

// topicsPromptTmpl renders the topic-decomposition request. The numbered
// list with Priority lines is the output contract parseTopics expects.
var topicsPromptTmpl = template.Must(template.New("topics").Parse(`You are a research planner. Break the research question below into exactly {{.Count}} focused sub-topics.

Research question: {{.Question}}

Format your answer as a numbered list. Each item is one single-line topic statement followed by a priority line:

1. <topic statement>
Priority: <integer 1-5>

Use priority 5 for the most central sub-topics and 1 for peripheral ones. Do not add any other text.`))

// queryPromptTmpl renders the search-query request for one topic.
var queryPromptTmpl = template.Must(template.New("query").Parse(`Generate one concise literature search query for the research topic below.

Root question: {{.Question}}
Topic: {{.Topic}}
{{- if .Exclude}}

These queries are already taken; yours must not duplicate or overlap them: {{.Exclude}}
{{- end}}

Reply with the query text only, no quotes and no explanation.`))

func renderTopicsPrompt(question string, count int) (string, error) {
	var buf bytes.Buffer
	err := topicsPromptTmpl.Execute(&buf, struct {
		Question string
		Count    int
	}{Question: question, Count: count})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderQueryPrompt(question, topic string, previous []string) (string, error) {
	var buf bytes.Buffer
	err := queryPromptTmpl.Execute(&buf, struct {
		Question string
		Topic    string
		Exclude  string
	}{Question: question, Topic: topic, Exclude: strings.Join(previous, ", ")})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
