package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"storyflow/internal/evidence"
	"storyflow/internal/gaps"
	"storyflow/internal/metrics"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .storyflow) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		// Fresh database.
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersionV1 {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// SaveEvidence appends one bundle version to the story's history. The
// version must be strictly ahead of the stored head; anything else is a
// conflict the caller resolves by re-reading and re-applying.
func (s *SqlStore) SaveEvidence(b evidence.Bundle) error {
	if err := evidence.Validate(b); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var head sql.NullInt64
	err = tx.QueryRow(
		"SELECT MAX(version) FROM evidence WHERE story_id = ?", b.StoryID,
	).Scan(&head)
	if err != nil {
		return fmt.Errorf("read evidence head: %w", err)
	}
	if head.Valid && int64(b.Version) <= head.Int64 {
		return fmt.Errorf("%w: version %d, head %d", ErrVersionConflict, b.Version, head.Int64)
	}

	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	_, err = tx.Exec(
		"INSERT INTO evidence(story_id, version, payload, created_at) VALUES(?, ?, ?, ?)",
		b.StoryID, b.Version, payload, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evidence: %w", err)
	}
	return nil
}

// LatestEvidence returns the highest stored version for the story.
func (s *SqlStore) LatestEvidence(storyID string) (evidence.Bundle, error) {
	var payload []byte
	err := s.db.QueryRow(
		"SELECT payload FROM evidence WHERE story_id = ? ORDER BY version DESC LIMIT 1",
		storyID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return evidence.Bundle{}, fmt.Errorf("%w: evidence for %s", ErrNotFound, storyID)
	}
	if err != nil {
		return evidence.Bundle{}, fmt.Errorf("get evidence: %w", err)
	}
	var b evidence.Bundle
	if err := json.Unmarshal(payload, &b); err != nil {
		return evidence.Bundle{}, fmt.Errorf("unmarshal evidence: %w", err)
	}
	return b, nil
}

// EvidenceHistory returns all stored versions for the story, oldest first.
func (s *SqlStore) EvidenceHistory(storyID string) ([]evidence.Bundle, error) {
	rows, err := s.db.Query(
		"SELECT payload FROM evidence WHERE story_id = ? ORDER BY version",
		storyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var history []evidence.Bundle
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		var b evidence.Bundle
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, fmt.Errorf("unmarshal evidence: %w", err)
		}
		history = append(history, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return history, nil
}

// AppendGapAction appends one lifecycle action to a gap's log.
func (s *SqlStore) AppendGapAction(storyID, gapID string, a gaps.Action) error {
	ts := a.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.Exec(
		"INSERT INTO gap_actions(story_id, gap_id, action, timestamp) VALUES(?, ?, ?, ?)",
		storyID, gapID, string(a.Type), ts.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert gap action: %w", err)
	}
	return nil
}

// GapHistory returns a gap's action log in append order.
func (s *SqlStore) GapHistory(storyID, gapID string) ([]gaps.Action, error) {
	rows, err := s.db.Query(
		"SELECT action, timestamp FROM gap_actions WHERE story_id = ? AND gap_id = ? ORDER BY id",
		storyID, gapID,
	)
	if err != nil {
		return nil, fmt.Errorf("list gap actions: %w", err)
	}
	defer rows.Close()

	var history []gaps.Action
	for rows.Next() {
		var typ, ts string
		if err := rows.Scan(&typ, &ts); err != nil {
			return nil, fmt.Errorf("scan gap action: %w", err)
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse gap action timestamp: %w", err)
		}
		history = append(history, gaps.Action{Type: gaps.ActionType(typ), Timestamp: t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gap actions: %w", err)
	}
	return history, nil
}

// SaveReport archives one analytics report.
func (s *SqlStore) SaveReport(r metrics.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO reports(story_id, generated_at, payload) VALUES(?, ?, ?)",
		r.StoryID, r.GeneratedAt.UTC().Format(time.RFC3339), payload,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// LatestReport returns the most recently archived report for the story.
func (s *SqlStore) LatestReport(storyID string) (metrics.Report, error) {
	var payload []byte
	err := s.db.QueryRow(
		"SELECT payload FROM reports WHERE story_id = ? ORDER BY id DESC LIMIT 1",
		storyID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return metrics.Report{}, fmt.Errorf("%w: report for %s", ErrNotFound, storyID)
	}
	if err != nil {
		return metrics.Report{}, fmt.Errorf("get report: %w", err)
	}
	var r metrics.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return metrics.Report{}, fmt.Errorf("unmarshal report: %w", err)
	}
	return r, nil
}
