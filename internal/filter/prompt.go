package filter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// titlePromptTmpl renders the coarse title-pass request.
var titlePromptTmpl = template.Must(template.New("title").Parse(`You are selecting source documents for the research topic below.

Topic: {{.Topic}}

Candidate documents:
{{.Listing}}
Reply with a JSON array of at most {{.Limit}} integers: the indices of the documents whose titles are most relevant to the topic, best first. Reply with the JSON array only.`))

// abstractPromptTmpl renders the fine abstract-pass request.
var abstractPromptTmpl = template.Must(template.New("abstract").Parse(`You are choosing the final source documents for the research topic below.

Topic: {{.Topic}}

Shortlisted documents:
{{.Listing}}
Reply with a JSON array of at most {{.Limit}} integers: the indices of the documents whose abstracts are most relevant to the topic, best first. Reply with the JSON array only.`))

func renderTitlePrompt(topic string, docs []types.Document, limit int) (string, error) {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d] %s\n", i, d.Title)
	}
	return renderListingPrompt(titlePromptTmpl, topic, b.String(), limit)
}

func renderAbstractPrompt(topic string, docs []types.Document, limit int) (string, error) {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d]\nTitle: %s\nAbstract: %s\n\n", i, d.Title, d.Abstract)
	}
	return renderListingPrompt(abstractPromptTmpl, topic, b.String(), limit)
}

func renderListingPrompt(tmpl *template.Template, topic, listing string, limit int) (string, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		Topic   string
		Listing string
		Limit   int
	}{Topic: topic, Listing: listing, Limit: limit})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
