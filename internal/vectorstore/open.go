package vectorstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"supportbot/internal/config"
	"supportbot/internal/domain"
	"supportbot/internal/logger"
	"supportbot/internal/vectorstore/memory"
	"supportbot/internal/vectorstore/qdrant"
	"supportbot/internal/vectorstore/sqlite"
)

const (
	BackendSQLite         = "sqlite"
	BackendQdrant         = "qdrant"
	BackendMemory         = "memory"
	BackendMemoryFallback = "memory-fallback"
)

// Handle is the long-lived store shared by all requests, tagged with the
// backend that actually serves it.
type Handle struct {
	Storage
	backend string
}

// Backend names the serving backend; "memory-fallback" means the persistent
// backend failed to initialise.
func (h *Handle) Backend() string { return h.backend }

// Open initialises the configured backend once. When a persistent backend
// cannot be initialised the in-memory store is returned instead and the
// weaker retrieval quality is logged.
func Open(ctx context.Context, cfg config.VectorStoreConfig, dimension int, log logger.Logger, obs domain.DegradationObserver) *Handle {
	if log == nil {
		log = logger.GetDefault()
	}
	if obs == nil {
		obs = domain.NopObserver{}
	}
	log = log.With("component", "vectorstore")

	if cfg.Type == BackendMemory {
		log.Warn("Vector store configured in memory; retrieval returns the first k passages and nothing is persisted")
		return &Handle{Storage: memory.NewStorage(), backend: BackendMemory}
	}
	st, backend, err := openPersistent(ctx, cfg, dimension)
	if err == nil {
		log.Info("Vector store ready", "backend", backend)
		return &Handle{Storage: st, backend: backend}
	}
	log.Warn("Persistent vector store unavailable; using in-memory fallback (first-k retrieval, not nearest neighbour, not durable)",
		"backend", backend, "error", err)
	obs.Degraded("vectorstore", "persistent backend unavailable")
	return &Handle{Storage: memory.NewStorage(), backend: BackendMemoryFallback}
}

func openPersistent(ctx context.Context, cfg config.VectorStoreConfig, dimension int) (Storage, string, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.SQLite == nil || cfg.SQLite.Path == "" {
			return nil, BackendSQLite, fmt.Errorf("vectorstore: sqlite path missing")
		}
		st, err := sqlite.Open(ctx, cfg.SQLite.Path)
		return st, BackendSQLite, err
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, BackendQdrant, fmt.Errorf("vectorstore: qdrant config missing")
		}
		apiKey := ""
		if cfg.Qdrant.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.Qdrant.APIKeyEnv)
		}
		st, err := qdrant.NewStorage(ctx, qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     apiKey,
			Collection: cfg.Qdrant.Collection,
			Dimension:  dimension,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		})
		return st, BackendQdrant, err
	default:
		return nil, cfg.Type, fmt.Errorf("vectorstore: unknown type %q", cfg.Type)
	}
}
