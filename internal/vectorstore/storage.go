package vectorstore

import (
	"context"

	"supportbot/internal/domain"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = domain.ErrDimensionMismatch

// Storage persists knowledge-base passages with their vectors and answers
// nearest-neighbour queries. Query on an empty store returns an empty slice.
// Implementations are safe for concurrent readers.
type Storage interface {
	Upsert(ctx context.Context, id, text string, vector []float64, metadata map[string]any) error
	Query(ctx context.Context, vector []float64, k int) ([]domain.StoredHit, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
