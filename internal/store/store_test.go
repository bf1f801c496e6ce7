package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.StoreConfig{
		DatabasePath: filepath.Join(t.TempDir(), "research.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(runID string) types.ResearchResult {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return types.ResearchResult{
		RunID:        runID,
		RootQuestion: "how do surface codes scale",
		Analyses: []types.TopicAnalysis{
			{
				Topic: types.ResearchTopic{
					Text:     "surface code thresholds",
					Priority: 5,
					Query:    "surface code threshold estimate",
					Documents: []types.Document{
						{
							Title:     "Threshold Paper",
							Authors:   []string{"Smith, J.", "Doe, A."},
							Abstract:  "We estimate thresholds.",
							SourceURL: "http://example.org/1",
						},
						{
							Title:     "Scaling Paper",
							Authors:   []string{"Roe, B."},
							Abstract:  "We study scaling.",
							SourceURL: "http://example.org/2",
						},
					},
				},
				DocumentAnalyses: []string{"analysis one", "analysis two"},
				TopicSummary:     "thresholds near one percent",
				NewDirection:     "study biased noise",
			},
			{
				Topic: types.ResearchTopic{
					Text:     "decoder latency",
					Priority: 3,
					Query:    "realtime decoder latency",
				},
				TopicSummary: "decoders lag code cycles",
				NewDirection: "pipelined decoding",
			},
		},
		CreatedAt:   created,
		CompletedAt: created.Add(2 * time.Minute),
	}
}

func saveHelper(t *testing.T, s *Store, runID string) types.ResearchResult {
	t.Helper()
	result := sampleResult(runID)
	if err := s.SaveRun(context.Background(), result); err != nil {
		t.Fatal(err)
	}
	return result
}

// --- schema tests ---

func TestNewStoreCreatesSchema(t *testing.T) {
	s := testSetup(t)

	tables := []string{"runs", "topics", "documents", "topics_fts"}
	for _, table := range tables {
		var count int
		err := s.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestNewStoreCreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "research.db")
	s, err := NewStore(types.StoreConfig{DatabasePath: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}
}

// --- save and retrieve tests ---

func TestSaveAndGetRunRoundTrip(t *testing.T) {
	s := testSetup(t)
	want := saveHelper(t, s, "run-1")

	got, err := s.GetRun(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}

	if got.RunID != want.RunID {
		t.Errorf("RunID = %q, want %q", got.RunID, want.RunID)
	}
	if got.RootQuestion != want.RootQuestion {
		t.Errorf("RootQuestion = %q, want %q", got.RootQuestion, want.RootQuestion)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	if !got.CompletedAt.Equal(want.CompletedAt) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, want.CompletedAt)
	}

	if len(got.Analyses) != 2 {
		t.Fatalf("got %d analyses, want 2", len(got.Analyses))
	}

	// Topics come back in saved order.
	first := got.Analyses[0]
	if first.Topic.Text != "surface code thresholds" {
		t.Errorf("first topic = %q", first.Topic.Text)
	}
	if first.Topic.Priority != 5 {
		t.Errorf("priority = %d, want 5", first.Topic.Priority)
	}
	if first.Topic.Query != "surface code threshold estimate" {
		t.Errorf("query = %q", first.Topic.Query)
	}
	if first.TopicSummary != "thresholds near one percent" {
		t.Errorf("summary = %q", first.TopicSummary)
	}
	if first.NewDirection != "study biased noise" {
		t.Errorf("direction = %q", first.NewDirection)
	}

	// Documents and their analyses stay positionally parallel.
	if len(first.Topic.Documents) != 2 || len(first.DocumentAnalyses) != 2 {
		t.Fatalf("documents = %d, analyses = %d, want 2 and 2",
			len(first.Topic.Documents), len(first.DocumentAnalyses))
	}
	if first.Topic.Documents[0].Title != "Threshold Paper" {
		t.Errorf("doc title = %q", first.Topic.Documents[0].Title)
	}
	if first.DocumentAnalyses[1] != "analysis two" {
		t.Errorf("doc analysis = %q", first.DocumentAnalyses[1])
	}
	if len(first.Topic.Documents[0].Authors) != 2 || first.Topic.Documents[0].Authors[0] != "Smith, J." {
		t.Errorf("authors = %v", first.Topic.Documents[0].Authors)
	}

	// The second topic had no documents.
	second := got.Analyses[1]
	if len(second.Topic.Documents) != 0 {
		t.Errorf("second topic documents = %d, want 0", len(second.Topic.Documents))
	}
	if second.TopicSummary != "decoders lag code cycles" {
		t.Errorf("second summary = %q", second.TopicSummary)
	}
}

func TestSaveRunTwiceReplacesTopics(t *testing.T) {
	s := testSetup(t)
	saveHelper(t, s, "run-dup")
	saveHelper(t, s, "run-dup")

	got, err := s.GetRun(context.Background(), "run-dup")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Analyses) != 2 {
		t.Errorf("got %d analyses after double save, want 2", len(got.Analyses))
	}
}

func TestSaveEmptyRun(t *testing.T) {
	s := testSetup(t)
	result := types.ResearchResult{
		RunID:        "run-empty",
		RootQuestion: "a question with no surviving topics",
		CreatedAt:    time.Now(),
		CompletedAt:  time.Now(),
	}
	if err := s.SaveRun(context.Background(), result); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRun(context.Background(), "run-empty")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Analyses) != 0 {
		t.Errorf("got %d analyses, want 0", len(got.Analyses))
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := testSetup(t)

	_, err := s.GetRun(context.Background(), "no-such-run")
	if err == nil {
		t.Fatal("expected error for missing run")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want 'not found'", err.Error())
	}
}

// --- listing tests ---

func TestListRuns(t *testing.T) {
	s := testSetup(t)

	older := sampleResult("run-old")
	older.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.SaveRun(context.Background(), older); err != nil {
		t.Fatal(err)
	}
	newer := sampleResult("run-new")
	newer.CreatedAt = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := s.SaveRun(context.Background(), newer); err != nil {
		t.Fatal(err)
	}

	summaries, err := s.ListRuns(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d runs, want 2", len(summaries))
	}
	if summaries[0].RunID != "run-new" {
		t.Errorf("first run = %q, want newest first", summaries[0].RunID)
	}
	if summaries[0].Topics != 2 {
		t.Errorf("topic count = %d, want 2", summaries[0].Topics)
	}
	if summaries[0].RootQuestion == "" {
		t.Error("summary missing root question")
	}
}

func TestListRunsEmpty(t *testing.T) {
	s := testSetup(t)

	summaries, err := s.ListRuns(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 0 {
		t.Errorf("got %d runs, want 0", len(summaries))
	}
}

// --- full-text search tests ---

func TestSearchTopics(t *testing.T) {
	s := testSetup(t)
	saveHelper(t, s, "run-fts")

	tests := []struct {
		name    string
		query   string
		wantMin int
	}{
		{"summary term", "thresholds", 1},
		{"direction term", "pipelined", 1},
		{"topic term", "decoder", 1},
		{"no match", "xyzzy", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := s.SearchTopics(context.Background(), tt.query, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) < tt.wantMin {
				t.Errorf("got %d hits, want >= %d", len(hits), tt.wantMin)
			}
			for _, h := range hits {
				if h.RunID != "run-fts" {
					t.Errorf("hit run = %q", h.RunID)
				}
				if h.RootQuestion == "" {
					t.Error("hit missing root question")
				}
			}
		})
	}
}

func TestSearchTopicsAcrossRuns(t *testing.T) {
	s := testSetup(t)
	saveHelper(t, s, "run-a")
	saveHelper(t, s, "run-b")

	hits, err := s.SearchTopics(context.Background(), "thresholds", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want 2 (one per run)", len(hits))
	}
}

func TestSearchTopicsRespectsLimit(t *testing.T) {
	s := testSetup(t)
	for i := 0; i < 3; i++ {
		saveHelper(t, s, fmt.Sprintf("run-%d", i))
	}

	hits, err := s.SearchTopics(context.Background(), "thresholds", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) > 2 {
		t.Errorf("got %d hits, want <= 2", len(hits))
	}
}

func TestSearchTopicsReplacedRowsDropOut(t *testing.T) {
	s := testSetup(t)
	saveHelper(t, s, "run-replace")

	// Re-save with different topic content; the old FTS rows must not match.
	replaced := sampleResult("run-replace")
	replaced.Analyses = replaced.Analyses[:1]
	replaced.Analyses[0].TopicSummary = "entirely different wording"
	if err := s.SaveRun(context.Background(), replaced); err != nil {
		t.Fatal(err)
	}

	hits, err := s.SearchTopics(context.Background(), "pipelined", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits for deleted content, want 0", len(hits))
	}
}

// --- export tests ---

func TestExportYAML(t *testing.T) {
	s := testSetup(t)
	saveHelper(t, s, "run-yaml")

	var buf strings.Builder
	if err := s.ExportYAML(context.Background(), "run-yaml", &buf); err != nil {
		t.Fatal(err)
	}

	var got types.ResearchResult
	if err := yaml.Unmarshal([]byte(buf.String()), &got); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if got.RunID != "run-yaml" {
		t.Errorf("RunID = %q", got.RunID)
	}
	if len(got.Analyses) != 2 {
		t.Errorf("got %d analyses, want 2", len(got.Analyses))
	}
}

func TestExportJSON(t *testing.T) {
	s := testSetup(t)
	saveHelper(t, s, "run-json")

	var buf strings.Builder
	if err := s.ExportJSON(context.Background(), "run-json", &buf); err != nil {
		t.Fatal(err)
	}

	var got types.ResearchResult
	if err := json.Unmarshal([]byte(buf.String()), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.RootQuestion != "how do surface codes scale" {
		t.Errorf("RootQuestion = %q", got.RootQuestion)
	}
}

func TestExportMissingRun(t *testing.T) {
	s := testSetup(t)

	var buf strings.Builder
	err := s.ExportYAML(context.Background(), "absent", &buf)
	if err == nil {
		t.Fatal("expected error for missing run")
	}
}
