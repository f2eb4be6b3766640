package retriever

import (
	"context"
	"fmt"
	"sort"

	"supportbot/internal/domain"
	"supportbot/internal/logger"
)

// Store is the read side of the vector store used during orchestration.
type Store interface {
	Query(ctx context.Context, vector []float64, k int) ([]domain.StoredHit, error)
	Count(ctx context.Context) (int, error)
}

// Retriever embeds a query and ranks knowledge-base passages by similarity.
// It is safe for concurrent use when the embedder and store are.
type Retriever struct {
	embedder domain.Embedder
	store    Store
	log      logger.Logger
	observer domain.DegradationObserver
}

func New(embedder domain.Embedder, store Store, log logger.Logger, observer domain.DegradationObserver) *Retriever {
	if log == nil {
		log = logger.GetDefault()
	}
	if observer == nil {
		observer = domain.NopObserver{}
	}
	return &Retriever{embedder: embedder, store: store, log: log.With("component", "retriever"), observer: observer}
}

// Retrieve returns at most topK documents ordered by descending similarity.
// Failures yield an empty slice; retrieval only augments the answer.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []domain.RetrievedDocument {
	docs, err := r.retrieve(ctx, query, topK)
	if err != nil {
		r.log.Warn("Retrieval failed; continuing without context", "error", err)
		r.observer.Degraded("retriever", "retrieval failed")
		return []domain.RetrievedDocument{}
	}
	return docs
}

func (r *Retriever) retrieve(ctx context.Context, query string, topK int) (docs []domain.RetrievedDocument, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			docs, err = nil, fmt.Errorf("retriever: panic: %v", rec)
		}
	}()
	if topK <= 0 || r.store == nil || r.embedder == nil {
		return []domain.RetrievedDocument{}, nil
	}
	n, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("retriever: count: %w", err)
	}
	if n == 0 {
		return []domain.RetrievedDocument{}, nil
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retriever: embed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("retriever: embed returned %d vectors for 1 query", len(vecs))
	}
	hits, err := r.store.Query(ctx, vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("retriever: query: %w", err)
	}
	docs = make([]domain.RetrievedDocument, 0, len(hits))
	for _, h := range hits {
		meta := h.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		docs = append(docs, domain.RetrievedDocument{Text: h.Text, Metadata: meta, SimilarityScore: Similarity(h.Distance)})
	}
	SortBySimilarity(docs)
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// Similarity converts a store distance to a score in [0,1].
func Similarity(distance float64) float64 {
	s := 1 - distance
	if s < 0 || s != s {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// SortBySimilarity orders docs by descending score, keeping store order on ties.
func SortBySimilarity(docs []domain.RetrievedDocument) {
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].SimilarityScore > docs[j].SimilarityScore })
}
