// Package history persists finished chat exchanges.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

// created_at holds Unix nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	query          TEXT NOT NULL,
	response       TEXT NOT NULL,
	action_invoked TEXT,
	confidence     REAL NOT NULL,
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chats_user_created ON chats (user_id, created_at);`

// Entry is one stored exchange.
type Entry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Query         string    `json:"query"`
	Response      string    `json:"response"`
	ActionInvoked *string   `json:"action_invoked"`
	Confidence    float64   `json:"confidence"`
	CreatedAt     time.Time `json:"created_at"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database and schema when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history: empty database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record implements domain.ChatRecorder.
func (s *Store) Record(ctx context.Context, userID, query, response string, actionInvoked *string, confidence float64) error {
	var act sql.NullString
	if actionInvoked != nil {
		act = sql.NullString{String: *actionInvoked, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, query, response, action_invoked, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, query, response, act, confidence, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("history: record chat: %w", err)
	}
	return nil
}

// Recent returns up to limit exchanges for userID, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, query, response, action_invoked, confidence, created_at
		 FROM chats WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			act     sql.NullString
			created int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Query, &e.Response, &act, &e.Confidence, &created); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		if act.Valid {
			v := act.String
			e.ActionInvoked = &v
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate rows: %w", err)
	}
	return out, nil
}

// Count returns the number of stored exchanges.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error { return s.db.Close() }
