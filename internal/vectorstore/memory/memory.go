package memory

import (
	"context"
	"sync"

	"supportbot/internal/domain"
)

type entry struct {
	id       string
	text     string
	vector   []float64
	metadata map[string]any
}

// Storage is the non-durable fallback store. Query ignores the query vector
// and returns the first k passages in insertion order with distance 0.
type Storage struct {
	mu      sync.RWMutex
	entries []entry
	index   map[string]int
}

func NewStorage() *Storage { return &Storage{index: make(map[string]int)} }

// Upsert replaces an existing id in place, keeping its original position.
func (s *Storage) Upsert(_ context.Context, id, text string, vector []float64, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{id: id, text: text, vector: append([]float64(nil), vector...), metadata: cloneMap(metadata)}
	if i, ok := s.index[id]; ok {
		s.entries[i] = e
		return nil
	}
	s.index[id] = len(s.entries)
	s.entries = append(s.entries, e)
	return nil
}

func (s *Storage) Query(_ context.Context, _ []float64, k int) ([]domain.StoredHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.entries) == 0 {
		return []domain.StoredHit{}, nil
	}
	if k > len(s.entries) {
		k = len(s.entries)
	}
	hits := make([]domain.StoredHit, 0, k)
	for _, e := range s.entries[:k] {
		hits = append(hits, domain.StoredHit{ID: e.id, Text: e.text, Metadata: cloneMap(e.metadata), Distance: 0})
	}
	return hits, nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Storage) Close() error { return nil }

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
