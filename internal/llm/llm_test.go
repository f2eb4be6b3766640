package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type stubModel struct {
	reply   string
	err     error
	panics  bool
	prompts []string
}

func (s *stubModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if s.panics {
		panic("boom")
	}
	for _, m := range msgs {
		for _, p := range m.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				s.prompts = append(s.prompts, tc.Text)
			}
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.reply}}}, nil
}

func (s *stubModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, opts...)
}

func TestModel_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("returns trimmed completion", func(t *testing.T) {
		stub := &stubModel{reply: "  greeting (0.9)\n"}
		out, err := Wrap(stub, "stub").Complete(ctx, "classify this")
		require.NoError(t, err)
		assert.Equal(t, "greeting (0.9)", out)
		assert.Equal(t, []string{"classify this"}, stub.prompts)
	})

	t.Run("wraps client errors", func(t *testing.T) {
		cause := errors.New("quota exceeded")
		_, err := Wrap(&stubModel{err: cause}, "stub").Complete(ctx, "x")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("recovers client panics", func(t *testing.T) {
		_, err := Wrap(&stubModel{panics: true}, "stub").Complete(ctx, "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panicked")
	})

	t.Run("unavailable model", func(t *testing.T) {
		var m *Model
		assert.False(t, m.Available())
		_, err := m.Complete(ctx, "x")
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, "none", m.Provider())
	})
}

func TestNew_DegradedProviders(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"none", Config{Provider: "none"}},
		{"empty", Config{}},
		{"openai without key", Config{Provider: "openai", Model: "gpt-4o-mini"}},
		{"googleai without key", Config{Provider: "googleai", Model: "gemini-2.0-flash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(ctx, tt.cfg)
			require.NoError(t, err)
			assert.False(t, m.Available())
			_, err = m.Complete(ctx, "hello")
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}

	_, err := New(ctx, Config{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
