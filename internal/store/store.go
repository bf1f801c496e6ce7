// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists completed research runs in SQLite and serves
// retrieval, listing, full-text search over topics, and export.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	defaultDBFile     = "research.db"
	defaultMaxResults = 20
)

// Store manages the research run SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates the run database at cfg.DatabasePath (default
// ./research.db), creating parent directories and the schema as needed.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = defaultDBFile
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, maxResults: defaultMaxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			root_question TEXT NOT NULL,
			final_summary TEXT,
			created_at TEXT NOT NULL,
			completed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS topics (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			text TEXT NOT NULL,
			priority INTEGER,
			query TEXT,
			topic_summary TEXT,
			new_direction TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_topics_run_id ON topics(run_id)`,
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			topic_id INTEGER NOT NULL REFERENCES topics(rowid),
			position INTEGER NOT NULL,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			source_url TEXT,
			analysis TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_topic_id ON documents(topic_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='topics_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE topics_fts USING fts5(text, topic_summary, new_direction, content=topics, content_rowid=rowid)`,
			`CREATE TRIGGER topics_ai AFTER INSERT ON topics BEGIN
				INSERT INTO topics_fts(rowid, text, topic_summary, new_direction)
				VALUES (new.rowid, new.text, new.topic_summary, new.new_direction);
			END`,
			`CREATE TRIGGER topics_ad AFTER DELETE ON topics BEGIN
				INSERT INTO topics_fts(topics_fts, rowid, text, topic_summary, new_direction)
				VALUES('delete', old.rowid, old.text, old.topic_summary, old.new_direction);
			END`,
			`CREATE TRIGGER topics_au AFTER UPDATE ON topics BEGIN
				INSERT INTO topics_fts(topics_fts, rowid, text, topic_summary, new_direction)
				VALUES('delete', old.rowid, old.text, old.topic_summary, old.new_direction);
				INSERT INTO topics_fts(rowid, text, topic_summary, new_direction)
				VALUES (new.rowid, new.text, new.topic_summary, new.new_direction);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// SaveRun persists a completed research run. Saving a run ID that already
// exists replaces its topics and documents.
func (s *Store) SaveRun(ctx context.Context, result types.ResearchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Remove old rows if re-saving.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE topic_id IN (SELECT rowid FROM topics WHERE run_id = ?)`,
		result.RunID,
	); err != nil {
		return fmt.Errorf("deleting old documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM topics WHERE run_id = ?`, result.RunID,
	); err != nil {
		return fmt.Errorf("deleting old topics: %w", err)
	}

	completedAt := ""
	if !result.CompletedAt.IsZero() {
		completedAt = result.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, root_question, final_summary, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			root_question=excluded.root_question, final_summary=excluded.final_summary,
			created_at=excluded.created_at, completed_at=excluded.completed_at`,
		result.RunID, result.RootQuestion, result.FinalSummary,
		result.CreatedAt.UTC().Format(time.RFC3339Nano), completedAt,
	); err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (topic_id, position, title, authors, abstract, source_url, analysis)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing document insert: %w", err)
	}
	defer docStmt.Close()

	for pos, analysis := range result.Analyses {
		topic := analysis.Topic
		res, err := tx.ExecContext(ctx,
			`INSERT INTO topics (run_id, position, text, priority, query, topic_summary, new_direction)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, pos, topic.Text, topic.Priority, topic.Query,
			analysis.TopicSummary, analysis.NewDirection,
		)
		if err != nil {
			return fmt.Errorf("inserting topic %q: %w", topic.Text, err)
		}
		topicID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading topic id: %w", err)
		}

		for i, doc := range topic.Documents {
			authorsJSON, _ := json.Marshal(doc.Authors)
			docAnalysis := ""
			if i < len(analysis.DocumentAnalyses) {
				docAnalysis = analysis.DocumentAnalyses[i]
			}
			if _, err := docStmt.ExecContext(ctx,
				topicID, i, doc.Title, string(authorsJSON), doc.Abstract,
				doc.SourceURL, docAnalysis,
			); err != nil {
				return fmt.Errorf("inserting document %q: %w", doc.Title, err)
			}
		}
	}

	return tx.Commit()
}
