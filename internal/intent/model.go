package intent

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"supportbot/internal/domain"
	"supportbot/internal/logger"
)

const fewShotPrompt = `You classify customer support messages.
Reply with exactly one line in the form: <intent> (<confidence between 0 and 1>)
Known intents: password_reset, check_ticket_status, generate_summary, general_query.

Message: I can't sign in to my account anymore
password_reset (0.93)

Message: Any update on ticket 48213?
check_ticket_status (0.96)

Message: Give me the key points of the refund policy
generate_summary (0.88)

Message: Which payment methods do you accept?
general_query (0.85)

Message: %s
`

var replyRe = regexp.MustCompile(`([A-Za-z_]+)\s*\(\s*([0-9]*\.?[0-9]+)\s*\)`)

var intentAliases = map[string]string{
	"reset_password":   domain.IntentPasswordReset,
	"password":         domain.IntentPasswordReset,
	"ticket_status":    domain.IntentTicketStatus,
	"check_ticket":     domain.IntentTicketStatus,
	"summary":          domain.IntentSummary,
	"summarize":        domain.IntentSummary,
	"summarise":        domain.IntentSummary,
	"general":          domain.IntentGeneralQuery,
	"general_question": domain.IntentGeneralQuery,
}

// ErrMalformedReply is reported when the model answer has no
// "<intent> (<confidence>)" pair.
var ErrMalformedReply = errors.New("intent: malformed model reply")

// ModelStrategy asks the generation model. It declines when the model is
// missing, fails, or answers in an unexpected shape, leaving the chain to
// fall back.
type ModelStrategy struct {
	model domain.Completer
	log   logger.Logger
}

func NewModelStrategy(model domain.Completer, log logger.Logger) *ModelStrategy {
	if log == nil {
		log = logger.GetDefault()
	}
	return &ModelStrategy{model: model, log: log}
}

func (*ModelStrategy) Name() string { return "model" }

func (m *ModelStrategy) Classify(ctx context.Context, query string) (domain.ClassificationResult, bool) {
	if m.model == nil {
		return domain.ClassificationResult{}, false
	}
	prompt := strings.Replace(fewShotPrompt, "%s", strings.TrimSpace(query), 1)
	reply, err := m.model.Complete(ctx, prompt)
	if err != nil {
		m.log.Warn("Intent model unavailable; using fallback intent", "error", err)
		return domain.ClassificationResult{}, false
	}
	res, err := ParseReply(reply)
	if err != nil {
		m.log.Warn("Intent model reply unparseable; using fallback intent", "reply", truncate(reply, 80))
		return domain.ClassificationResult{}, false
	}
	return res, true
}

// ParseReply extracts the first "<intent> (<confidence>)" pair, normalising
// known aliases and clamping the confidence to [0,1].
func ParseReply(reply string) (domain.ClassificationResult, error) {
	m := replyRe.FindStringSubmatch(reply)
	if m == nil {
		return domain.ClassificationResult{}, ErrMalformedReply
	}
	conf, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return domain.ClassificationResult{}, ErrMalformedReply
	}
	tag := strings.ToLower(m[1])
	if canon, ok := intentAliases[tag]; ok {
		tag = canon
	}
	return domain.ClassificationResult{Intent: tag, Confidence: clamp01(conf)}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
