package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/research-assistant/internal/httputil"
)

func init() {
	// Throttle retries back off from this base; keep it tiny in tests.
	httputil.RetryBaseDelay = time.Millisecond
}

const sampleArxivXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <title>Attention Is All You Need</title>
    <summary>
      The dominant sequence transduction models are based on recurrence.
    </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.07041v1</id>
    <title> Surface Code Decoders </title>
    <summary> We survey decoding algorithms. </summary>
    <author><name>A. Researcher</name></author>
  </entry>
</feed>`

func TestArxivSourceSearch(t *testing.T) {
	var gotSortBy string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSortBy = r.URL.Query().Get("sortBy")
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, sampleArxivXML)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	s := &ArxivSource{Client: ts.Client(), UserAgent: "research-assistant/test"}
	docs, err := s.Search(context.Background(), "attention transformers", 10, OrderRelevance)
	if err != nil {
		t.Fatalf("ArxivSource.Search: %v", err)
	}
	if gotSortBy != "relevance" {
		t.Errorf("sortBy = %q, want %q", gotSortBy, "relevance")
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}

	d := docs[0]
	if d.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q", d.Title)
	}
	if len(d.Authors) != 2 {
		t.Errorf("len(Authors) = %d, want 2", len(d.Authors))
	}
	if d.SourceURL != "http://arxiv.org/abs/1706.03762v7" {
		t.Errorf("SourceURL = %q", d.SourceURL)
	}
	if d.Abstract == "" {
		t.Error("Abstract is empty")
	}
	if docs[1].Title != "Surface Code Decoders" {
		t.Errorf("second Title = %q, whitespace not trimmed", docs[1].Title)
	}
}

func TestArxivSourceSearchRecencyOrder(t *testing.T) {
	var gotSortBy, gotSortOrder string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSortBy = r.URL.Query().Get("sortBy")
		gotSortOrder = r.URL.Query().Get("sortOrder")
		fmt.Fprint(w, sampleArxivXML)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	s := &ArxivSource{Client: ts.Client()}
	if _, err := s.Search(context.Background(), "surface codes", 5, OrderRecency); err != nil {
		t.Fatalf("ArxivSource.Search: %v", err)
	}
	if gotSortBy != "submittedDate" {
		t.Errorf("sortBy = %q, want %q", gotSortBy, "submittedDate")
	}
	if gotSortOrder != "descending" {
		t.Errorf("sortOrder = %q, want %q", gotSortOrder, "descending")
	}
}

func TestArxivSourceEmptyQuery(t *testing.T) {
	s := &ArxivSource{}
	if _, err := s.Search(context.Background(), "   ", 5, OrderRelevance); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestArxivSourceHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	s := &ArxivSource{Client: ts.Client()}
	if _, err := s.Search(context.Background(), "surface codes", 5, OrderRelevance); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestArxivSourceRetriesWhenThrottled(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, sampleArxivXML)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	s := &ArxivSource{Client: ts.Client()}
	docs, err := s.Search(context.Background(), "surface codes", 5, OrderRelevance)
	if err != nil {
		t.Fatalf("ArxivSource.Search: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len(docs) = %d, want 2", len(docs))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("API calls = %d, want 3 (two throttled, one success)", got)
	}
}
