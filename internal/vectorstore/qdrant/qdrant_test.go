package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/domain"
)

type fakeQdrant struct {
	mu       sync.Mutex
	exists   bool
	size     int
	points   map[string]map[string]any
	apiKeys  []string
	lastBody map[string]any
}

func newFakeQdrant() *fakeQdrant { return &fakeQdrant{points: map[string]map[string]any{}} }

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.lastBody = body

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections/kb":
		if !f.exists {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size}}}}})
	case r.Method == http.MethodPut && r.URL.Path == "/collections/kb":
		f.exists = true
		f.size = int(body["vectors"].(map[string]any)["size"].(float64))
		writeJSON(w, map[string]any{"result": true})
	case r.Method == http.MethodPut && r.URL.Path == "/collections/kb/points":
		for _, p := range body["points"].([]any) {
			pt := p.(map[string]any)
			f.points[pt["id"].(string)] = pt["payload"].(map[string]any)
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case r.Method == http.MethodPost && r.URL.Path == "/collections/kb/points/count":
		writeJSON(w, map[string]any{"result": map[string]any{"count": len(f.points)}})
	case r.Method == http.MethodPost && r.URL.Path == "/collections/kb/points/search":
		result := []map[string]any{}
		for id, payload := range f.points {
			result = append(result, map[string]any{"id": id, "score": 0.75, "payload": payload})
		}
		writeJSON(w, map[string]any{"result": result})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestStorage_CreatesCollectionAndRoundTrips(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ctx := context.Background()

	s, err := NewStorage(ctx, Config{URL: srv.URL + "/", APIKey: "secret", Collection: "kb", Dimension: 2})
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, fake.exists)
	assert.Equal(t, 2, fake.size)

	require.NoError(t, s.Upsert(ctx, "faq.txt#0", "Reset your password from the login page.", []float64{1, 0}, map[string]any{"source": "faq.txt"}))
	require.NoError(t, s.Upsert(ctx, "faq.txt#0", "Reset your password from the login page.", []float64{1, 0}, map[string]any{"source": "faq.txt"}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := s.Query(ctx, []float64{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "faq.txt#0", hits[0].ID)
	assert.Equal(t, "Reset your password from the login page.", hits[0].Text)
	assert.Equal(t, "faq.txt", hits[0].Metadata["source"])
	assert.InDelta(t, 0.25, hits[0].Distance, 1e-9)
	assert.NotContains(t, hits[0].Metadata, "text")
	for _, k := range fake.apiKeys {
		assert.Equal(t, "secret", k)
	}
}

func TestStorage_DimensionChecks(t *testing.T) {
	fake := newFakeQdrant()
	fake.exists = true
	fake.size = 4
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ctx := context.Background()

	_, err := NewStorage(ctx, Config{URL: srv.URL, Collection: "kb", Dimension: 2})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	s, err := NewStorage(ctx, Config{URL: srv.URL, Collection: "kb", Dimension: 4})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Upsert(ctx, "a", "a", []float64{1}, nil), domain.ErrDimensionMismatch)
	_, err = s.Query(ctx, []float64{1}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestNewStorage_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err := NewStorage(context.Background(), Config{URL: srv.URL, Collection: "kb", Dimension: 2})
	assert.Error(t, err)
}

func TestPointIDIsStable(t *testing.T) {
	assert.Equal(t, PointID("doc#1"), PointID("doc#1"))
	assert.NotEqual(t, PointID("doc#1"), PointID("doc#2"))
}
