package domain

// Intent tags understood by the dispatcher and synthesizer. Classifier models
// may emit other tags; those are routed like IntentGeneralQuery.
const (
	IntentGreeting      = "greeting"
	IntentPasswordReset = "password_reset"
	IntentTicketStatus  = "check_ticket_status"
	IntentSummary       = "generate_summary"
	IntentGeneralQuery  = "general_query"
	IntentError         = "error"
	IntentNoIntent      = "no_intent"
	IntentUnknown       = "unknown"
)

// Query is the raw input of one orchestration call.
type Query struct {
	Text   string
	UserID string
}

// ClassificationResult is the classifier verdict for a query. Confidence is
// always set, including on degraded paths.
type ClassificationResult struct {
	Intent     string
	Confidence float64
	// Source names the strategy that produced the verdict.
	Source string
}

// RetrievedDocument is a knowledge-base passage ranked for one query.
type RetrievedDocument struct {
	Text            string         `json:"text"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore float64        `json:"similarity_score"`
}

// ActionOutcome captures which action ran and what it produced. Both fields
// are empty when no action applies; a clarification has a Result but no Name.
type ActionOutcome struct {
	Name   string
	Result string
}

// Invoked reports whether an action actually executed.
func (o ActionOutcome) Invoked() bool { return o.Name != "" }

// OrchestrationResult is the only externally visible output of the core.
type OrchestrationResult struct {
	Intent        string              `json:"intent"`
	Response      string              `json:"response"`
	SourceDocs    []RetrievedDocument `json:"source_docs"`
	Confidence    float64             `json:"confidence"`
	ActionInvoked *string             `json:"action_invoked"`
}

// StoredHit is a raw vector-store match before similarity conversion.
type StoredHit struct {
	ID       string
	Text     string
	Metadata map[string]any
	Distance float64
}
