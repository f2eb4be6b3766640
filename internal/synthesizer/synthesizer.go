// Package synthesizer turns context, action output and intent into the
// final answer text.
package synthesizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"supportbot/internal/domain"
	"supportbot/internal/logger"
)

const (
	GreetingReply  = "Hello! I'm your support assistant. How can I help you today?"
	FallbackSource = "Sources: fallback system (knowledge base excerpts)"

	apologyReply = "Summary: Sorry, I couldn't understand or process that request.\n" +
		"- Try rephrasing your question or include more detail (for example a ticket number).\n" +
		"Sources: none"
	noContextSummary = "Summary: No relevant knowledge base passages were found for your question."

	maxBullets     = 3
	minBulletRunes = 12
)

const answerPrompt = `You are a customer support assistant. Answer the user using only the action result and knowledge base context below.
Format the answer exactly as:
Summary: <one sentence>
- <point>
(at most 3 bullet points)
Sources: <where the information came from>
`

type Synthesizer struct {
	model        domain.Completer
	summaryRunes int
	log          logger.Logger
	observer     domain.DegradationObserver
}

type Option func(*Synthesizer)

func WithLogger(l logger.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.log = l
		}
	}
}

func WithObserver(o domain.DegradationObserver) Option {
	return func(s *Synthesizer) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithSummaryRunes sets the fallback summary snippet length (default 200).
func WithSummaryRunes(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.summaryRunes = n
		}
	}
}

// New returns a synthesizer. A nil model means every answer uses the
// deterministic fallback.
func New(model domain.Completer, opts ...Option) *Synthesizer {
	s := &Synthesizer{model: model, summaryRunes: 200, log: logger.GetDefault(), observer: domain.NopObserver{}}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "synthesizer")
	return s
}

// Synthesize never fails and never returns an empty string.
func (s *Synthesizer) Synthesize(ctx context.Context, query, contextText, intent, actionResult string) string {
	switch {
	case intent == domain.IntentGreeting:
		return GreetingReply
	case strings.TrimSpace(query) == "" || IsApologyIntent(intent):
		return apologyReply
	}
	if s.model != nil {
		out, err := s.generate(ctx, query, contextText, actionResult)
		if err == nil && strings.TrimSpace(out) != "" {
			return out
		}
		s.log.Warn("Generation unavailable; composing fallback answer", "error", err)
		s.observer.Degraded("synthesizer", "model failed")
	}
	return Fallback(contextText, actionResult, s.summaryRunes)
}

// IsApologyIntent reports intents that always receive the fixed apology.
func IsApologyIntent(intent string) bool {
	switch intent {
	case domain.IntentError, domain.IntentUnknown, domain.IntentNoIntent:
		return true
	}
	return false
}

func (s *Synthesizer) generate(ctx context.Context, query, contextText, actionResult string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("synthesizer: model panic: %v", r)
		}
	}()
	return s.model.Complete(ctx, BuildPrompt(query, contextText, actionResult))
}

// BuildPrompt renders the action result first, then context, then the query.
func BuildPrompt(query, contextText, actionResult string) string {
	var b strings.Builder
	b.WriteString(answerPrompt)
	if strings.TrimSpace(actionResult) != "" {
		b.WriteString("\nAction result:\n")
		b.WriteString(actionResult)
		b.WriteString("\n")
	}
	b.WriteString("\nContext:\n")
	if strings.TrimSpace(contextText) == "" {
		b.WriteString("(no knowledge base passages)\n")
	} else {
		b.WriteString(contextText)
		b.WriteString("\n")
	}
	b.WriteString("\nUser query:\n")
	b.WriteString(query)
	b.WriteString("\n")
	return b.String()
}

// Fallback composes the answer without a model: optional action line,
// summary snippet, up to three bullets from non-trivial context lines, and
// the fixed sources marker.
func Fallback(contextText, actionResult string, summaryRunes int) string {
	var b strings.Builder
	if a := strings.TrimSpace(actionResult); a != "" {
		b.WriteString("Action: ")
		b.WriteString(a)
		b.WriteString("\n")
	}
	ctxText := strings.TrimSpace(contextText)
	if ctxText == "" {
		b.WriteString(noContextSummary)
		b.WriteString("\n")
	} else {
		b.WriteString("Summary: ")
		b.WriteString(snippet(strings.Join(strings.Fields(ctxText), " "), summaryRunes))
		b.WriteString("\n")
		for _, line := range bullets(ctxText) {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	b.WriteString(FallbackSource)
	return b.String()
}

func snippet(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func bullets(text string) []string {
	out := make([]string, 0, maxBullets)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		if utf8.RuneCountInString(line) < minBulletRunes {
			continue
		}
		out = append(out, snippet(line, 160))
		if len(out) == maxBullets {
			break
		}
	}
	return out
}
