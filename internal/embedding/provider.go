package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"

	"supportbot/internal/domain"
	"supportbot/internal/logger"
)

const (
	ModeModel  = "model"
	ModePseudo = "pseudo"

	defaultDimension = 384
	defaultCacheSize = 1024

	dimensionProbe = "dimension probe"
)

// Provider is the embedding provider shared by every request. It delegates to
// a langchaingo embedder when one is configured and otherwise, or when a call
// fails, answers with deterministic pseudo-embeddings.
type Provider struct {
	primary   embeddings.Embedder
	dimension int
	log       logger.Logger
	observer  domain.DegradationObserver
	cache     *lru.Cache[string, []float64]
}

type Option func(*Provider)

// WithDimension sets the size of pseudo-embeddings.
func WithDimension(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.dimension = n
		}
	}
}

// WithCacheSize sizes the LRU of primary vectors; 0 disables caching.
func WithCacheSize(n int) Option {
	return func(p *Provider) {
		p.cache = nil
		if n > 0 {
			p.cache, _ = lru.New[string, []float64](n)
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

func WithObserver(o domain.DegradationObserver) Option {
	return func(p *Provider) {
		if o != nil {
			p.observer = o
		}
	}
}

// New builds a provider. A nil primary puts it in pseudo mode for its whole life.
func New(primary embeddings.Embedder, opts ...Option) *Provider {
	p := &Provider{
		primary:   primary,
		dimension: defaultDimension,
		log:       logger.GetDefault(),
		observer:  domain.NopObserver{},
	}
	WithCacheSize(defaultCacheSize)(p)
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "embedding")
	if p.primary == nil {
		p.log.Warn("No embedding model configured; using pseudo-embeddings (not semantically meaningful)")
		p.observer.Degraded("embedding", "no model")
	}
	return p
}

// Mode reports whether a model backs the provider.
func (p *Provider) Mode() string {
	if p.primary == nil {
		return ModePseudo
	}
	return ModeModel
}

// Dimension returns the pseudo-embedding size.
func (p *Provider) Dimension() int { return p.dimension }

// VectorDimension returns the length of the vectors Embed produces. In model
// mode it embeds a short probe text once; if that call fails the pseudo size
// is returned, matching what Embed would fall back to.
func (p *Provider) VectorDimension(ctx context.Context) int {
	if p.primary == nil {
		return p.dimension
	}
	vectors, err := p.embedPrimary(ctx, []string{dimensionProbe})
	if err != nil || len(vectors) != 1 || len(vectors[0]) == 0 {
		p.log.Warn("Could not measure embedding model dimension; using pseudo size", "error", err, "dimension", p.dimension)
		return p.dimension
	}
	return len(vectors[0])
}

// Embed never fails: an empty input gives an empty output and a failing
// model call is answered with pseudo-embeddings for that call.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if p.primary == nil {
		return pseudoEmbedAll(texts, p.dimension), nil
	}
	vectors, err := p.embedPrimary(ctx, texts)
	if err != nil {
		p.log.Warn("Embedding model failed; falling back to pseudo-embeddings", "error", err, "texts", len(texts))
		p.observer.Degraded("embedding", "model error")
		return pseudoEmbedAll(texts, p.dimension), nil
	}
	return vectors, nil
}

func (p *Provider) embedPrimary(ctx context.Context, texts []string) (vectors [][]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("embedding: model panicked: %v", r)
		}
	}()
	out := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if v, ok := p.cached(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	raw, err := p.primary.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("embedding: embed documents: %w", err)
	}
	if len(raw) != len(missing) {
		return nil, fmt.Errorf("embedding: model returned %d vectors for %d texts", len(raw), len(missing))
	}
	for j, vec := range raw {
		if len(vec) == 0 {
			return nil, fmt.Errorf("embedding: model returned an empty vector")
		}
		converted := toFloat64(vec)
		out[missingIdx[j]] = converted
		p.store(missing[j], converted)
	}
	return out, nil
}

func (p *Provider) cached(text string) ([]float64, bool) {
	if p.cache == nil {
		return nil, false
	}
	return p.cache.Get(text)
}

func (p *Provider) store(text string, v []float64) {
	if p.cache != nil {
		p.cache.Add(text, v)
	}
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
