package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"

	"supportbot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS kb_vectors (
	id            TEXT PRIMARY KEY,
	text          TEXT NOT NULL,
	embedding     BLOB NOT NULL,
	dimension     INTEGER NOT NULL,
	metadata_json TEXT NOT NULL DEFAULT '{}',
	updated_at    TEXT NOT NULL
)`

// Storage keeps passages in a local SQLite file and ranks them by cosine
// distance in process. Every stored vector shares one dimension.
type Storage struct {
	db *sql.DB
}

// Open creates the database file (and its directory) when missing.
// Path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Upsert(ctx context.Context, id, text string, vector []float64, metadata map[string]any) error {
	if len(vector) == 0 {
		return fmt.Errorf("sqlite: empty vector for %q", id)
	}
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if dim != 0 && dim != len(vector) {
		return fmt.Errorf("sqlite: upsert %q with %d dims into %d-dim store: %w", id, len(vector), dim, domain.ErrDimensionMismatch)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("sqlite: encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO kb_vectors (id, text, embedding, dimension, metadata_json, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	text = excluded.text,
	embedding = excluded.embedding,
	dimension = excluded.dimension,
	metadata_json = excluded.metadata_json,
	updated_at = excluded.updated_at`,
		id, text, encodeVector(vector), len(vector), string(meta), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: upsert %q: %w", id, err)
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, vector []float64, k int) ([]domain.StoredHit, error) {
	if k <= 0 {
		return []domain.StoredHit{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding, metadata_json FROM kb_vectors ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query vectors: %w", err)
	}
	defer rows.Close()

	hits := make([]domain.StoredHit, 0)
	for rows.Next() {
		var (
			id, text, meta string
			blob           []byte
		)
		if err := rows.Scan(&id, &text, &blob, &meta); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		stored := decodeVector(blob)
		if len(stored) != len(vector) {
			return nil, fmt.Errorf("sqlite: query with %d dims against %d-dim row %q: %w", len(vector), len(stored), id, domain.ErrDimensionMismatch)
		}
		hit := domain.StoredHit{ID: id, Text: text, Metadata: map[string]any{}, Distance: 1 - cosine(vector, stored)}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &hit.Metadata); err != nil {
				return nil, fmt.Errorf("sqlite: decode metadata for %q: %w", id, err)
			}
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate rows: %w", err)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kb_vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count vectors: %w", err)
	}
	return n, nil
}

func (s *Storage) Close() error { return s.db.Close() }

func (s *Storage) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM kb_vectors LIMIT 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: read dimension: %w", err)
	}
	return dim, nil
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

// cosine returns 0 when either vector has zero norm.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
