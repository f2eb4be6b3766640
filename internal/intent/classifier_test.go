package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/domain"
	"supportbot/internal/logger"
)

type scriptedModel struct {
	reply  string
	err    error
	panics bool
	calls  int
}

func (m *scriptedModel) Complete(_ context.Context, prompt string) (string, error) {
	m.calls++
	if m.panics {
		panic("model exploded")
	}
	return m.reply, m.err
}

func newClassifier(model domain.Completer) *Classifier {
	return New(model, 1000, WithLogger(logger.NewLogger(logger.TestConfig())))
}

func TestClassify_Rules(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		intent     string
		confidence float64
	}{
		{"empty", "", domain.IntentNoIntent, 0.1},
		{"whitespace", "  \t\n", domain.IntentNoIntent, 0.1},
		{"hi with bang", "Hi!", domain.IntentGreeting, 1.0},
		{"lower hi", "hi", domain.IntentGreeting, 1.0},
		{"upper hello", "HELLO.", domain.IntentGreeting, 1.0},
		{"good morning", "Good morning, team!", domain.IntentGreeting, 1.0},
		{"hey there", "hey there", domain.IntentGreeting, 1.0},
		{"forgot password", "I forgot my password", domain.IntentPasswordReset, 0.99},
		{"reset", "reset my password", domain.IntentPasswordReset, 0.99},
		{"locked out", "locked out", domain.IntentPasswordReset, 0.99},
		{"cant login", "can't login", domain.IntentPasswordReset, 0.99},
		{"curly apostrophe", "I can’t log in", domain.IntentPasswordReset, 0.99},
		{"ticket with id", "What's the status of ticket 123456?", domain.IntentTicketStatus, 0.95},
		{"ticket without id", "where is my ticket", domain.IntentTicketStatus, 0.8},
		{"summary", "Can you summarize the refund policy?", domain.IntentSummary, 0.9},
		{"tldr", "tl;dr of the onboarding guide", domain.IntentSummary, 0.9},
		{"too long", strings.Repeat("a", 1001), domain.IntentError, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedModel{reply: "general_query (0.7)"}
			res := newClassifier(model).Classify(context.Background(), tt.query)
			assert.Equal(t, tt.intent, res.Intent)
			assert.InDelta(t, tt.confidence, res.Confidence, 1e-9)
			assert.Zero(t, model.calls, "rules must short-circuit the model")
		})
	}
}

func TestIsGreeting_RejectsEmbeddedWords(t *testing.T) {
	for _, q := range []string{"this is a hint", "hi, my password expired", "shell", "hello world again", "hey you"} {
		assert.False(t, IsGreeting(q), q)
	}
}

func TestClassify_Model(t *testing.T) {
	tests := []struct {
		name       string
		model      *scriptedModel
		intent     string
		confidence float64
	}{
		{"parsed", &scriptedModel{reply: "general_query (0.82)"}, domain.IntentGeneralQuery, 0.82},
		{"alias", &scriptedModel{reply: "Intent: reset_password (0.9)"}, domain.IntentPasswordReset, 0.9},
		{"novel tag passes through", &scriptedModel{reply: "billing_question (0.6)"}, "billing_question", 0.6},
		{"clamped", &scriptedModel{reply: "general_query (7)"}, domain.IntentGeneralQuery, 1.0},
		{"malformed", &scriptedModel{reply: "I think it is about billing"}, domain.IntentGeneralQuery, 0.5},
		{"error", &scriptedModel{err: errors.New("quota")}, domain.IntentGeneralQuery, 0.5},
		{"panic", &scriptedModel{panics: true}, domain.IntentGeneralQuery, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newClassifier(tt.model).Classify(context.Background(), "Which payment methods do you accept?")
			assert.Equal(t, tt.intent, res.Intent)
			assert.InDelta(t, tt.confidence, res.Confidence, 1e-9)
			assert.Equal(t, 1, tt.model.calls)
		})
	}
}

func TestClassify_NoModelFallsBack(t *testing.T) {
	res := newClassifier(nil).Classify(context.Background(), "Which payment methods do you accept?")
	assert.Equal(t, Fallback.Intent, res.Intent)
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)
}

func TestClassify_IsDeterministic(t *testing.T) {
	c := newClassifier(nil)
	for _, q := range []string{"hi", "reset my password", "ticket 5551234", "random question"} {
		assert.Equal(t, c.Classify(context.Background(), q), c.Classify(context.Background(), q))
	}
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string { return "broken" }
func (panickingStrategy) Classify(context.Context, string) (domain.ClassificationResult, bool) {
	panic("broken strategy")
}

func TestClassify_SkipsPanickingStrategy(t *testing.T) {
	c := New(nil, 0, WithLogger(logger.NewLogger(logger.TestConfig())), WithStrategies(panickingStrategy{}, Greeting{}))
	res := c.Classify(context.Background(), "hello")
	assert.Equal(t, domain.IntentGreeting, res.Intent)
	assert.Equal(t, "greeting", res.Source)
}

func TestParseReply(t *testing.T) {
	res, err := ParseReply("check_ticket_status ( 0.75 )")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentTicketStatus, res.Intent)
	assert.InDelta(t, 0.75, res.Confidence, 1e-9)

	_, err = ParseReply("no idea")
	assert.ErrorIs(t, err, ErrMalformedReply)
}
