package intent

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"supportbot/internal/action"
	"supportbot/internal/domain"
)

// Empty catches blank queries.
type Empty struct{}

func (Empty) Name() string { return "empty" }

func (Empty) Classify(_ context.Context, query string) (domain.ClassificationResult, bool) {
	if strings.TrimSpace(query) != "" {
		return domain.ClassificationResult{}, false
	}
	return domain.ClassificationResult{Intent: domain.IntentNoIntent, Confidence: 0.1}, true
}

var greetingPhrases = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "hiya": {}, "howdy": {}, "greetings": {},
	"good morning": {}, "good afternoon": {}, "good evening": {},
}

var greetingAddressees = map[string]struct{}{
	"there": {}, "all": {}, "everyone": {}, "team": {}, "folks": {},
}

// Greeting matches whole greeting phrases, optionally followed by one
// addressee word ("hi there"). "Hi, my password expired" is not a greeting.
type Greeting struct{}

func (Greeting) Name() string { return "greeting" }

func (Greeting) Classify(_ context.Context, query string) (domain.ClassificationResult, bool) {
	if !IsGreeting(query) {
		return domain.ClassificationResult{}, false
	}
	return domain.ClassificationResult{Intent: domain.IntentGreeting, Confidence: 1.0}, true
}

func IsGreeting(query string) bool {
	words := strings.Fields(normalize(query))
	if len(words) == 0 {
		return false
	}
	if _, ok := greetingPhrases[strings.Join(words, " ")]; ok {
		return true
	}
	if len(words) < 2 {
		return false
	}
	if _, ok := greetingAddressees[words[len(words)-1]]; !ok {
		return false
	}
	_, ok := greetingPhrases[strings.Join(words[:len(words)-1], " ")]
	return ok
}

// normalize lowercases and replaces punctuation with spaces.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			// keep contractions together: "can't" -> "cant"
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LengthCeiling rejects oversized queries before they reach the model.
type LengthCeiling struct {
	MaxRunes int
}

func (LengthCeiling) Name() string { return "length_ceiling" }

func (l LengthCeiling) Classify(_ context.Context, query string) (domain.ClassificationResult, bool) {
	if l.MaxRunes <= 0 || utf8.RuneCountInString(query) <= l.MaxRunes {
		return domain.ClassificationResult{}, false
	}
	return domain.ClassificationResult{Intent: domain.IntentError, Confidence: 0.3}, true
}

var passwordPhrases = []string{
	"reset password", "forgot password", "change password",
	"reset my password", "forgot my password", "change my password",
	"password reset", "cant login", "cant log in", "cannot login", "cannot log in",
	"locked out", "lost access", "access to account", "access to my account",
}

var ticketWords = []string{"ticket", "status", "progress"}

var summaryPhrases = []string{
	"summarize", "summarise", "summary", "tldr", "tl dr", "brief overview", "key points",
}

// Keywords recognises the action intents from fixed phrases.
type Keywords struct{}

func (Keywords) Name() string { return "keywords" }

func (Keywords) Classify(_ context.Context, query string) (domain.ClassificationResult, bool) {
	padded := " " + strings.Join(strings.Fields(normalize(query)), " ") + " "
	has := func(phrases []string) bool {
		for _, p := range phrases {
			if strings.Contains(padded, " "+p+" ") {
				return true
			}
		}
		return false
	}
	if has(passwordPhrases) {
		return domain.ClassificationResult{Intent: domain.IntentPasswordReset, Confidence: 0.99}, true
	}
	if has(ticketWords) {
		if _, ok := action.ExtractTicketID(query); ok {
			return domain.ClassificationResult{Intent: domain.IntentTicketStatus, Confidence: 0.95}, true
		}
		if has(ticketWords[:1]) {
			return domain.ClassificationResult{Intent: domain.IntentTicketStatus, Confidence: 0.8}, true
		}
	}
	if has(summaryPhrases) {
		return domain.ClassificationResult{Intent: domain.IntentSummary, Confidence: 0.9}, true
	}
	return domain.ClassificationResult{}, false
}
