// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// fakeSource returns canned documents per ordering and records calls.
type fakeSource struct {
	byOrder map[Order][]types.Document
	errs    map[Order]error
	calls   []Order
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Search(_ context.Context, _ string, _ int, order Order) ([]types.Document, error) {
	f.calls = append(f.calls, order)
	if err := f.errs[order]; err != nil {
		return nil, err
	}
	return f.byOrder[order], nil
}

func doc(title string) types.Document {
	return types.Document{Title: title, SourceURL: "http://example.org/" + title}
}

func TestCollect_ConcatenatesBothOrderings(t *testing.T) {
	src := &fakeSource{byOrder: map[Order][]types.Document{
		OrderRelevance: {doc("alpha"), doc("beta")},
		OrderRecency:   {doc("beta"), doc("gamma")},
	}}
	c := NewCollector(src, 10, nil)

	docs, err := c.Collect(context.Background(), "query")
	require.NoError(t, err)

	// Relevance results first, duplicates deliberately preserved.
	require.Len(t, docs, 4)
	assert.Equal(t, "alpha", docs[0].Title)
	assert.Equal(t, "beta", docs[1].Title)
	assert.Equal(t, "beta", docs[2].Title)
	assert.Equal(t, "gamma", docs[3].Title)

	assert.ElementsMatch(t, []Order{OrderRelevance, OrderRecency}, src.calls)
}

func TestCollect_SearchFailureFailsCollect(t *testing.T) {
	src := &fakeSource{
		byOrder: map[Order][]types.Document{OrderRelevance: {doc("alpha")}},
		errs:    map[Order]error{OrderRecency: errors.New("service unavailable")},
	}
	c := NewCollector(src, 10, nil)

	_, err := c.Collect(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recency search")
}

func TestHTTPFetcher_FetchContent(t *testing.T) {
	body := strings.Repeat("research text ", 100)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "research-assistant/test", r.Header.Get("User-Agent"))
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	f := &HTTPFetcher{Client: ts.Client(), UserAgent: "research-assistant/test"}
	content, err := f.FetchContent(context.Background(), types.Document{Title: "t", SourceURL: ts.URL})
	require.NoError(t, err)
	assert.Equal(t, body, content)
}

func TestHTTPFetcher_CapsContentLength(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 1024))
	}))
	defer ts.Close()

	f := &HTTPFetcher{Client: ts.Client(), MaxBytes: 64}
	content, err := f.FetchContent(context.Background(), types.Document{Title: "t", SourceURL: ts.URL})
	require.NoError(t, err)
	assert.Len(t, content, 64)
}

func TestHTTPFetcher_Errors(t *testing.T) {
	f := &HTTPFetcher{}
	_, err := f.FetchContent(context.Background(), types.Document{Title: "no url"})
	assert.ErrorContains(t, err, "no source URL")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f = &HTTPFetcher{Client: ts.Client()}
	_, err = f.FetchContent(context.Background(), types.Document{Title: "t", SourceURL: ts.URL})
	assert.ErrorContains(t, err, "HTTP 404")
}
