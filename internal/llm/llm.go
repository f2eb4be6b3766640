// Package llm adapts langchaingo chat models to the single-prompt
// completion contract used by the classifier and the synthesizer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrUnavailable is returned by Complete when no model is configured.
var ErrUnavailable = errors.New("llm: text generation unavailable")

// Config selects the langchaingo chat model.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// Model is a text completer. The zero value and a Model built without a
// backing client both report ErrUnavailable.
type Model struct {
	model       llms.Model
	provider    string
	temperature float64
	maxTokens   int
}

// Wrap uses an existing langchaingo model.
func Wrap(m llms.Model, provider string) *Model {
	return &Model{model: m, provider: provider, maxTokens: 512}
}

// New builds the configured client. A provider of "none" or a missing
// credential yields an unavailable Model and no error.
func New(ctx context.Context, cfg Config) (*Model, error) {
	m, err := createLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}
	out := &Model{model: m, provider: cfg.Provider, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}
	if out.maxTokens == 0 {
		out.maxTokens = 512
	}
	return out, nil
}

func createLLM(ctx context.Context, cfg Config) (llms.Model, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, nil
		}
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
			openai.WithHTTPClient(httpClient),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: openai client: %w", err)
		}
		return m, nil
	case "ollama":
		opts := []ollama.Option{
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(httpClient),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		m, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: ollama client: %w", err)
		}
		return m, nil
	case "googleai", "gemini":
		if cfg.APIKey == "" {
			return nil, nil
		}
		m, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("llm: googleai client: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// Available reports whether a backing model is configured.
func (m *Model) Available() bool { return m != nil && m.model != nil }

func (m *Model) Provider() string {
	if !m.Available() {
		return "none"
	}
	return m.provider
}

// Complete sends a single prompt and returns the trimmed completion.
// A panic inside the client is reported as an error.
func (m *Model) Complete(ctx context.Context, prompt string) (out string, err error) {
	if !m.Available() {
		return "", ErrUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("llm: %s client panicked: %v", m.provider, r)
		}
	}()
	text, err := llms.GenerateFromSinglePrompt(ctx, m.model, prompt,
		llms.WithTemperature(m.temperature),
		llms.WithMaxTokens(m.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("llm: %s completion: %w", m.provider, err)
	}
	return strings.TrimSpace(text), nil
}
