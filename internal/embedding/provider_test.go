package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/logger"
)

type fakeEmbedder struct {
	calls int
	err   error
	panic bool
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

// sizedEmbedder returns vectors of a fixed length, like a hosted model.
type sizedEmbedder struct{ size int }

func (s sizedEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.size)
		out[i][0] = float32(i + 1)
	}
	return out, nil
}

func (s sizedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, _ := s.EmbedDocuments(ctx, []string{text})
	return v[0], nil
}

type countingObserver struct{ events []string }

func (c *countingObserver) Degraded(component, reason string) {
	c.events = append(c.events, component+":"+reason)
}

func quietLogger() logger.Logger { return logger.NewLogger(logger.TestConfig()) }

func TestProvider_EmptyInput(t *testing.T) {
	for _, p := range []*Provider{
		New(nil, WithLogger(quietLogger())),
		New(&fakeEmbedder{}, WithLogger(quietLogger())),
	} {
		out, err := p.Embed(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestProvider_PseudoMode(t *testing.T) {
	obs := &countingObserver{}
	p := New(nil, WithDimension(16), WithLogger(quietLogger()), WithObserver(obs))
	assert.Equal(t, ModePseudo, p.Mode())
	assert.Equal(t, []string{"embedding:no model"}, obs.events)

	out, err := p.Embed(context.Background(), []string{"reset my password", "api limits"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Len(t, out[0], 16)
	assert.NotEqual(t, out[0], out[1])

	again, _ := p.Embed(context.Background(), []string{"reset my password"})
	assert.Equal(t, out[0], again[0])
}

func TestProvider_PrimaryAndCache(t *testing.T) {
	fake := &fakeEmbedder{}
	p := New(fake, WithLogger(quietLogger()))
	assert.Equal(t, ModeModel, p.Mode())

	out, err := p.Embed(context.Background(), []string{"abc", "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, out[0])
	assert.Equal(t, []float64{5, 1}, out[1])

	_, err = p.Embed(context.Background(), []string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls, "cached text should not reach the model")
}

func TestProvider_FallsBackPerCall(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeEmbedder
	}{
		{name: "model error", fake: &fakeEmbedder{err: errors.New("rate limited")}},
		{name: "model panic", fake: &fakeEmbedder{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &countingObserver{}
			p := New(tt.fake, WithDimension(8), WithCacheSize(0), WithLogger(quietLogger()), WithObserver(obs))
			out, err := p.Embed(context.Background(), []string{"locked out"})
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, PseudoEmbed("locked out", 8), out[0])
			assert.Equal(t, []string{"embedding:model error"}, obs.events)
		})
	}
}

func TestProvider_VectorDimension(t *testing.T) {
	ctx := context.Background()

	t.Run("model size wins over pseudo size", func(t *testing.T) {
		p := New(sizedEmbedder{size: 1536}, WithLogger(quietLogger()))
		assert.Equal(t, 384, p.Dimension())
		assert.Equal(t, 1536, p.VectorDimension(ctx))

		out, err := p.Embed(ctx, []string{"how do I reset my password"})
		require.NoError(t, err)
		assert.Len(t, out[0], p.VectorDimension(ctx))
	})

	t.Run("pseudo mode", func(t *testing.T) {
		p := New(nil, WithDimension(16), WithLogger(quietLogger()))
		assert.Equal(t, 16, p.VectorDimension(ctx))
	})

	t.Run("failing model reports the fallback size", func(t *testing.T) {
		p := New(&fakeEmbedder{err: errors.New("down")}, WithDimension(8), WithLogger(quietLogger()))
		assert.Equal(t, 8, p.VectorDimension(ctx))
	})
}

func TestProvider_ConcurrentEmbed(t *testing.T) {
	p := New(sizedEmbedder{size: 4}, WithCacheSize(8), WithLogger(quietLogger()))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := p.Embed(context.Background(), []string{fmt.Sprintf("q%d", i%5)})
			assert.NoError(t, err)
			assert.Len(t, out, 1)
		}(i)
	}
	wg.Wait()
}

func TestPseudoEmbed(t *testing.T) {
	v := PseudoEmbed("some text", 32)
	require.Len(t, v, 32)
	var norm float64
	for _, x := range v {
		assert.GreaterOrEqual(t, x, 0.0)
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)

	long := make([]rune, 400)
	for i := range long {
		long[i] = 'a'
	}
	tail := string(long) + "different tail"
	assert.Equal(t, PseudoEmbed(string(long), 32), PseudoEmbed(tail, 32), "only the prefix contributes")
}

func TestNewLangchain_DegradedWithoutKey(t *testing.T) {
	for _, provider := range []string{"none", "", "openai", "googleai"} {
		emb, err := NewLangchain(context.Background(), Config{Provider: provider})
		require.NoError(t, err)
		assert.Nil(t, emb)
	}
	_, err := NewLangchain(context.Background(), Config{Provider: "word2vec"})
	require.Error(t, err)
}
