package collect

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// defaultFetchMaxBytes caps content reads when the limit is unset.
const defaultFetchMaxBytes = 256 << 10

// ContentFetcher retrieves the full text of a document. It is invoked only
// for documents that survive the abstract-pass filter.
type ContentFetcher interface {
	FetchContent(ctx context.Context, doc types.Document) (string, error)
}

// HTTPFetcher fetches document content from its source URL with a byte cap.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	MaxBytes  int64
}

// FetchContent GETs the document's source URL and returns up to MaxBytes of
// the response body.
func (f *HTTPFetcher) FetchContent(ctx context.Context, doc types.Document) (string, error) {
	if doc.SourceURL == "" {
		return "", fmt.Errorf("document %q has no source URL", doc.Title)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.SourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", doc.SourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: HTTP %d", doc.SourceURL, resp.StatusCode)
	}

	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultFetchMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", doc.SourceURL, err)
	}
	return string(body), nil
}
