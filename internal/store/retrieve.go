// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// RunSummary is one row of a run listing.
type RunSummary struct {
	RunID        string    `json:"run_id" yaml:"run_id"`
	RootQuestion string    `json:"root_question" yaml:"root_question"`
	Topics       int       `json:"topics" yaml:"topics"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// SearchHit is one full-text match over stored topics.
type SearchHit struct {
	RunID        string `json:"run_id" yaml:"run_id"`
	RootQuestion string `json:"root_question" yaml:"root_question"`
	TopicText    string `json:"topic_text" yaml:"topic_text"`
	TopicSummary string `json:"topic_summary" yaml:"topic_summary"`
}

// GetRun reassembles a stored run, topics in saved order and document
// analyses positionally parallel to their documents.
func (s *Store) GetRun(ctx context.Context, runID string) (types.ResearchResult, error) {
	var (
		result       types.ResearchResult
		finalSummary sql.NullString
		createdAt    string
		completedAt  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, root_question, final_summary, created_at, completed_at FROM runs WHERE id = ?`,
		runID,
	).Scan(&result.RunID, &result.RootQuestion, &finalSummary, &createdAt, &completedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.ResearchResult{}, fmt.Errorf("run %s not found", runID)
		}
		return types.ResearchResult{}, fmt.Errorf("looking up run: %w", err)
	}

	if finalSummary.Valid {
		result.FinalSummary = finalSummary.String
	}
	result.CreatedAt = parseStoredTime(createdAt)
	if completedAt.Valid {
		result.CompletedAt = parseStoredTime(completedAt.String)
	}

	type storedTopic struct {
		rowid    int64
		analysis types.TopicAnalysis
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, text, priority, query, topic_summary, new_direction
		 FROM topics WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return types.ResearchResult{}, fmt.Errorf("querying topics: %w", err)
	}
	defer rows.Close()

	var topics []storedTopic
	for rows.Next() {
		var (
			st                          storedTopic
			query, topicSummary, newDir sql.NullString
		)
		if err := rows.Scan(&st.rowid, &st.analysis.Topic.Text, &st.analysis.Topic.Priority,
			&query, &topicSummary, &newDir); err != nil {
			return types.ResearchResult{}, fmt.Errorf("scanning topic: %w", err)
		}
		if query.Valid {
			st.analysis.Topic.Query = query.String
		}
		if topicSummary.Valid {
			st.analysis.TopicSummary = topicSummary.String
		}
		if newDir.Valid {
			st.analysis.NewDirection = newDir.String
		}
		topics = append(topics, st)
	}
	if err := rows.Err(); err != nil {
		return types.ResearchResult{}, fmt.Errorf("iterating topics: %w", err)
	}

	for i := range topics {
		if err := s.loadDocuments(ctx, &topics[i].analysis, topics[i].rowid); err != nil {
			return types.ResearchResult{}, err
		}
		result.Analyses = append(result.Analyses, topics[i].analysis)
	}

	return result, nil
}

func (s *Store) loadDocuments(ctx context.Context, analysis *types.TopicAnalysis, topicID int64) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, authors, abstract, source_url, analysis
		 FROM documents WHERE topic_id = ? ORDER BY position`,
		topicID,
	)
	if err != nil {
		return fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			doc         types.Document
			authorsJSON sql.NullString
			docAnalysis sql.NullString
		)
		if err := rows.Scan(&doc.Title, &authorsJSON, &doc.Abstract, &doc.SourceURL, &docAnalysis); err != nil {
			return fmt.Errorf("scanning document: %w", err)
		}
		if authorsJSON.Valid {
			json.Unmarshal([]byte(authorsJSON.String), &doc.Authors)
		}
		analysis.Topic.Documents = append(analysis.Topic.Documents, doc)
		if docAnalysis.Valid {
			analysis.DocumentAnalyses = append(analysis.DocumentAnalyses, docAnalysis.String)
		} else {
			analysis.DocumentAnalyses = append(analysis.DocumentAnalyses, "")
		}
	}
	return rows.Err()
}

// ListRuns returns stored runs, newest first, with per-run topic counts.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.root_question, r.created_at, r.completed_at, count(t.rowid)
		 FROM runs r LEFT JOIN topics t ON t.run_id = r.id
		 GROUP BY r.id ORDER BY r.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			rs          RunSummary
			createdAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&rs.RunID, &rs.RootQuestion, &createdAt, &completedAt, &rs.Topics); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rs.CreatedAt = parseStoredTime(createdAt)
		if completedAt.Valid {
			rs.CompletedAt = parseStoredTime(completedAt.String)
		}
		summaries = append(summaries, rs)
	}
	return summaries, rows.Err()
}

// SearchTopics runs an FTS5 query over stored topic text, summaries, and
// directions, ranked by relevance. limit zero uses the store default.
func (s *Store) SearchTopics(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = s.maxResults
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT t.run_id, r.root_question, t.text, t.topic_summary
		 FROM topics_fts
		 JOIN topics t ON t.rowid = topics_fts.rowid
		 JOIN runs r ON r.id = t.run_id
		 WHERE topics_fts MATCH ?
		 ORDER BY topics_fts.rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching topics: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			hit     SearchHit
			summary sql.NullString
		)
		if err := rows.Scan(&hit.RunID, &hit.RootQuestion, &hit.TopicText, &summary); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		if summary.Valid {
			hit.TopicSummary = summary.String
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// parseStoredTime reads an RFC3339Nano timestamp written by SaveRun.
func parseStoredTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
