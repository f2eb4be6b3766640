package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/config"
	"supportbot/internal/embedding"
	"supportbot/internal/logger"
)

type wideEmbedder struct{ size int }

func (w wideEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, w.size)
		out[i][i%w.size] = 1
	}
	return out, nil
}

func (w wideEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, _ := w.EmbedDocuments(ctx, []string{text})
	return v[0], nil
}

// qdrantCollection answers just enough of the Qdrant REST API to create a
// collection and accept points.
func qdrantCollection(t *testing.T, size *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/kb", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*size = body.Vectors.Size
		_, _ = w.Write([]byte(`{"result":true}`))
	})
	mux.HandleFunc("/collections/kb/points", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type recordingObserver struct{ events []string }

func (r *recordingObserver) Degraded(component, reason string) {
	r.events = append(r.events, component+": "+reason)
}

func testLogger() logger.Logger { return logger.NewLogger(logger.TestConfig()) }

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		obs := &recordingObserver{}
		cfg := config.VectorStoreConfig{Type: "sqlite", SQLite: &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "kb.db")}}
		h := Open(ctx, cfg, 4, testLogger(), obs)
		defer h.Close()
		assert.Equal(t, BackendSQLite, h.Backend())
		assert.Empty(t, obs.events)
	})

	t.Run("memory by configuration", func(t *testing.T) {
		obs := &recordingObserver{}
		h := Open(ctx, config.VectorStoreConfig{Type: "memory"}, 4, testLogger(), obs)
		assert.Equal(t, BackendMemory, h.Backend())
		assert.Empty(t, obs.events)
	})

	t.Run("falls back when qdrant is unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		obs := &recordingObserver{}
		cfg := config.VectorStoreConfig{Type: "qdrant", Qdrant: &config.QdrantConfig{URL: srv.URL, Collection: "kb"}}
		h := Open(ctx, cfg, 4, testLogger(), obs)
		assert.Equal(t, BackendMemoryFallback, h.Backend())
		require.Len(t, obs.events, 1)
		assert.Contains(t, obs.events[0], "vectorstore")

		n, err := h.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("qdrant collection sized from the embedding model", func(t *testing.T) {
		var created int
		srv := qdrantCollection(t, &created)
		emb := embedding.New(wideEmbedder{size: 1536}, embedding.WithLogger(testLogger()))

		cfg := config.VectorStoreConfig{Type: "qdrant", Qdrant: &config.QdrantConfig{URL: srv.URL, Collection: "kb"}}
		h := Open(ctx, cfg, emb.VectorDimension(ctx), testLogger(), nil)
		defer h.Close()
		require.Equal(t, BackendQdrant, h.Backend())
		assert.Equal(t, 1536, created)

		vectors, err := emb.Embed(ctx, []string{"Reset your password from the login page."})
		require.NoError(t, err)
		require.NoError(t, h.Upsert(ctx, "kb:0", "Reset your password from the login page.", vectors[0], nil))
	})

	t.Run("unknown type falls back", func(t *testing.T) {
		h := Open(ctx, config.VectorStoreConfig{Type: "cassandra"}, 4, nil, nil)
		assert.Equal(t, BackendMemoryFallback, h.Backend())
	})
}
