package main

import (
	"context"
	"fmt"
	"time"

	"supportbot/internal/action"
	"supportbot/internal/config"
	"supportbot/internal/domain"
	"supportbot/internal/embedding"
	"supportbot/internal/history"
	"supportbot/internal/ingest"
	"supportbot/internal/intent"
	"supportbot/internal/llm"
	"supportbot/internal/logger"
	"supportbot/internal/metrics"
	"supportbot/internal/orchestrator"
	"supportbot/internal/retriever"
	"supportbot/internal/server"
	"supportbot/internal/summarizer"
	"supportbot/internal/synthesizer"
	"supportbot/internal/vectorstore"
)

// app owns the long-lived components. They are built once at start-up and
// shared by every request; Close releases them.
type app struct {
	cfg       *config.AppConfig
	log       logger.Logger
	metrics   *metrics.Service
	embedder  *embedding.Provider
	store     *vectorstore.Handle
	generator *llm.Model
	history   *history.Store
	orch      *orchestrator.Orchestrator
}

func newApp(ctx context.Context, cfg *config.AppConfig, log logger.Logger) *app {
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	primary, err := embedding.NewLangchain(ctx, embedding.Config{
		Provider: cfg.Embedder.Provider,
		Model:    cfg.Embedder.Model,
		BaseURL:  cfg.Embedder.BaseURL,
		APIKey:   cfg.Embedder.APIKey(),
		Timeout:  time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Warn("Embedding model init failed", "error", err)
		primary = nil
	}
	a.embedder = embedding.New(primary,
		embedding.WithDimension(cfg.Embedder.Dimension),
		embedding.WithCacheSize(cfg.Embedder.CacheSize),
		embedding.WithLogger(log),
		embedding.WithObserver(a.metrics),
	)

	a.store = vectorstore.Open(ctx, cfg.VectorStore, a.embedder.VectorDimension(ctx), log, a.metrics)

	a.generator, err = llm.New(ctx, llm.Config{
		Provider: cfg.Generator.Provider,
		Model:    cfg.Generator.Model,
		BaseURL:  cfg.Generator.BaseURL,
		APIKey:   cfg.Generator.APIKey(),
		Timeout:  time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Warn("Generation model init failed", "error", err)
		a.generator = nil
	}
	if !a.generator.Available() {
		log.Warn("No generation model configured; answers use the structured fallback", "provider", cfg.Generator.Provider)
		a.metrics.Degraded("generator", "no model")
	}

	if cfg.History.Path != "" {
		a.history, err = history.Open(ctx, cfg.History.Path)
		if err != nil {
			log.Warn("Chat history disabled", "path", cfg.History.Path, "error", err)
			a.history = nil
		}
	}

	var completer domain.Completer
	if a.generator.Available() {
		completer = a.generator
	}
	a.orch = orchestrator.New(orchestrator.Deps{
		Classifier:  intent.New(completer, cfg.Orchestrator.MaxQueryChars, intent.WithLogger(log)),
		Retriever:   retriever.New(a.embedder, a.store, log, a.metrics),
		Dispatcher:  action.NewDispatcher(nil, nil, action.WithLogger(log), action.WithSummaryRunes(cfg.Orchestrator.SummaryChars)),
		Synthesizer: synthesizer.New(completer, synthesizer.WithLogger(log), synthesizer.WithObserver(a.metrics), synthesizer.WithSummaryRunes(cfg.Orchestrator.SummaryChars)),
	}, orchestrator.WithTopK(cfg.Orchestrator.TopK), orchestrator.WithLogger(log), orchestrator.WithObserver(a.metrics))
	return a
}

func (a *app) ingestService() *ingest.Service {
	return ingest.NewService(
		ingest.NewChunker(a.cfg.Ingest.ChunkChars, a.cfg.Ingest.OverlapChars),
		a.embedder, a.store, summarizer.NewFrequency(), a.cfg.Ingest.OverviewSize, a.log,
	)
}

func (a *app) health(ctx context.Context) server.Health {
	h := server.Health{
		Status:             "healthy",
		EmbedderMode:       a.embedder.Mode(),
		VectorBackend:      a.store.Backend(),
		GeneratorAvailable: a.generator.Available(),
	}
	n, err := a.store.Count(ctx)
	if err != nil {
		h.Status = "degraded"
		n = 0
	}
	h.Documents = n
	if h.EmbedderMode != embedding.ModeModel || h.VectorBackend == vectorstore.BackendMemoryFallback || !h.GeneratorAvailable {
		h.Status = "degraded"
	}
	return h
}

func (a *app) serverDeps() server.Deps {
	deps := server.Deps{Asker: a.orch, Health: a.health, Metrics: a.metrics}
	if a.history != nil {
		deps.History = a.history
	}
	return deps
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("Closing vector store failed", "error", err)
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("Closing chat history failed", "error", err)
		}
	}
}

func (a *app) String() string {
	return fmt.Sprintf("embedder=%s store=%s generator=%s", a.embedder.Mode(), a.store.Backend(), a.generator.Provider())
}
