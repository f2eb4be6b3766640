// Package orchestrator sequences classification, retrieval, action dispatch
// and synthesis for one query and always returns a complete result.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"supportbot/internal/action"
	"supportbot/internal/domain"
	"supportbot/internal/logger"
	"supportbot/internal/retriever"
)

// ErrorReply is the response text of every failed orchestration.
const ErrorReply = "Sorry, I encountered an error while processing your request. Please try again or contact support if this persists."

type Classifier interface {
	Classify(ctx context.Context, query string) domain.ClassificationResult
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) []domain.RetrievedDocument
}

type Dispatcher interface {
	Dispatch(ctx context.Context, intent string, req action.Request) domain.ActionOutcome
}

type Synthesizer interface {
	Synthesize(ctx context.Context, query, contextText, intent, actionResult string) string
}

// Observer is told about every finished call.
type Observer interface {
	ObserveQuery(intent, action string, elapsed time.Duration)
}

// Deps are the shared, long-lived components. All must be safe for
// concurrent use; the orchestrator holds no locks of its own.
type Deps struct {
	Classifier  Classifier
	Retriever   Retriever
	Dispatcher  Dispatcher
	Synthesizer Synthesizer
}

type Orchestrator struct {
	deps     Deps
	topK     int
	log      logger.Logger
	observer Observer
}

type Option func(*Orchestrator)

func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{deps: deps, topK: 3, log: logger.GetDefault()}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("component", "orchestrator")
	return o
}

// State is a step of the per-query state machine.
type State int

const (
	StateStart State = iota
	StateClassify
	StateGreet
	StateRetrieve
	StateDispatch
	StateSynthesize
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateClassify:
		return "CLASSIFY"
	case StateGreet:
		return "GREET"
	case StateRetrieve:
		return "RETRIEVE"
	case StateDispatch:
		return "DISPATCH_ACTION"
	case StateSynthesize:
		return "SYNTHESIZE"
	case StateDone:
		return "DONE"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// run holds the intermediate values of one call.
type run struct {
	query          domain.Query
	classification domain.ClassificationResult
	docs           []domain.RetrievedDocument
	contextText    string
	outcome        domain.ActionOutcome
	response       string
	trace          []State
}

// Orchestrate never panics and never returns a partially populated result.
func (o *Orchestrator) Orchestrate(ctx context.Context, q domain.Query) domain.OrchestrationResult {
	start := time.Now()
	r := &run{query: q}
	res := o.execute(ctx, r)
	if o.observer != nil {
		name := ""
		if res.ActionInvoked != nil {
			name = *res.ActionInvoked
		}
		o.observer.ObserveQuery(res.Intent, name, time.Since(start))
	}
	o.log.Debug("Query orchestrated", "user_id", q.UserID, "intent", res.Intent, "path", r.trace, "elapsed", time.Since(start))
	return res
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (res domain.OrchestrationResult) {
	state := StateStart
	defer func() {
		if rec := recover(); rec != nil {
			o.log.Error("Orchestration panicked", "state", state.String(), "panic", rec, "stack", string(debug.Stack()))
			r.trace = append(r.trace, StateError)
			res = ErrorResult()
		}
	}()
	for state != StateDone {
		r.trace = append(r.trace, state)
		next, err := o.step(ctx, state, r)
		if err != nil {
			o.log.Error("Orchestration failed", "state", state.String(), "error", err)
			r.trace = append(r.trace, StateError)
			return ErrorResult()
		}
		state = next
	}
	r.trace = append(r.trace, StateDone)
	return r.result()
}

func (o *Orchestrator) step(ctx context.Context, s State, r *run) (State, error) {
	switch s {
	case StateStart:
		return StateClassify, nil
	case StateClassify:
		if o.deps.Classifier == nil {
			return StateError, fmt.Errorf("orchestrator: no classifier")
		}
		r.classification = o.deps.Classifier.Classify(ctx, r.query.Text)
		if r.classification.Intent == "" {
			r.classification = domain.ClassificationResult{Intent: domain.IntentUnknown, Confidence: 0}
		}
		if r.classification.Intent == domain.IntentGreeting {
			return StateGreet, nil
		}
		return StateRetrieve, nil
	case StateGreet:
		r.docs = []domain.RetrievedDocument{}
		r.outcome = domain.ActionOutcome{}
		resp, err := o.synthesize(ctx, r, "")
		r.response = resp
		return StateDone, err
	case StateRetrieve:
		docs := []domain.RetrievedDocument{}
		if o.deps.Retriever != nil {
			if got := o.deps.Retriever.Retrieve(ctx, r.query.Text, o.topK); got != nil {
				docs = got
			}
		}
		retriever.SortBySimilarity(docs)
		texts := make([]string, 0, len(docs))
		for _, d := range docs {
			texts = append(texts, d.Text)
		}
		r.docs = docs
		r.contextText = strings.Join(texts, "\n\n")
		return StateDispatch, nil
	case StateDispatch:
		if o.deps.Dispatcher != nil {
			r.outcome = o.deps.Dispatcher.Dispatch(ctx, r.classification.Intent, action.Request{
				Query:  r.query.Text,
				UserID: r.query.UserID,
				Docs:   r.docs,
			})
		}
		return StateSynthesize, nil
	case StateSynthesize:
		resp, err := o.synthesize(ctx, r, r.outcome.Result)
		r.response = resp
		return StateDone, err
	default:
		return StateError, fmt.Errorf("orchestrator: unexpected state %s", s)
	}
}

func (o *Orchestrator) synthesize(ctx context.Context, r *run, actionResult string) (string, error) {
	if o.deps.Synthesizer == nil {
		return "", fmt.Errorf("orchestrator: no synthesizer")
	}
	out := o.deps.Synthesizer.Synthesize(ctx, r.query.Text, r.contextText, r.classification.Intent, actionResult)
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("orchestrator: empty response for intent %q", r.classification.Intent)
	}
	return out, nil
}

func (r *run) result() domain.OrchestrationResult {
	docs := r.docs
	if docs == nil {
		docs = []domain.RetrievedDocument{}
	}
	var invoked *string
	if r.outcome.Invoked() {
		name := r.outcome.Name
		invoked = &name
	}
	return domain.OrchestrationResult{
		Intent:        r.classification.Intent,
		Response:      r.response,
		SourceDocs:    docs,
		Confidence:    r.classification.Confidence,
		ActionInvoked: invoked,
	}
}

// ErrorResult is the single failure shape.
func ErrorResult() domain.OrchestrationResult {
	return domain.OrchestrationResult{
		Intent:     domain.IntentError,
		Response:   ErrorReply,
		SourceDocs: []domain.RetrievedDocument{},
		Confidence: 0,
	}
}
