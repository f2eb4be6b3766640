// Package action runs the side effect tied to a classified intent.
//
// The action set is closed: each Kind has one handler in the dispatch table
// and at most one action runs per query.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"supportbot/internal/domain"
	"supportbot/internal/logger"
)

type Kind int

const (
	KindNone Kind = iota
	KindResetPassword
	KindCheckTicket
	KindSummarize
)

// String returns the action name reported to callers.
func (k Kind) String() string {
	switch k {
	case KindResetPassword:
		return "reset_password"
	case KindCheckTicket:
		return "check_ticket_status"
	case KindSummarize:
		return "generate_summary"
	default:
		return ""
	}
}

// ErrMissingTicketID means the ticket intent matched but the query carried no id.
var ErrMissingTicketID = errors.New("action: no ticket id in query")

const (
	TicketClarification = "Please provide your ticket ID number to check its status."
	NoDocumentsSummary  = "Summary: No documents available."
)

// KindFor maps an intent to its action. Unknown intents map to KindNone.
func KindFor(intent string) Kind {
	switch intent {
	case domain.IntentPasswordReset:
		return KindResetPassword
	case domain.IntentTicketStatus:
		return KindCheckTicket
	case domain.IntentSummary:
		return KindSummarize
	default:
		return KindNone
	}
}

// Accounts performs account-level side effects.
type Accounts interface {
	ResetPassword(ctx context.Context, userID string) (string, error)
}

// Tickets looks up support tickets.
type Tickets interface {
	Status(ctx context.Context, ticketID string) (string, error)
}

// Request carries everything a handler may need.
type Request struct {
	Query  string
	UserID string
	Docs   []domain.RetrievedDocument
}

type handler func(ctx context.Context, req Request) (string, error)

type Dispatcher struct {
	table        map[Kind]handler
	summaryRunes int
	log          logger.Logger
}

type Option func(*Dispatcher)

func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithSummaryRunes sets the summary budget (default 200).
func WithSummaryRunes(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.summaryRunes = n
		}
	}
}

// NewDispatcher wires the handlers. Nil collaborators get the built-in
// canned implementations.
func NewDispatcher(accounts Accounts, tickets Tickets, opts ...Option) *Dispatcher {
	if accounts == nil {
		accounts = StaticAccounts{}
	}
	if tickets == nil {
		tickets = StaticTickets{}
	}
	d := &Dispatcher{summaryRunes: 200, log: logger.GetDefault()}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.With("component", "dispatcher")
	d.table = map[Kind]handler{
		KindResetPassword: func(ctx context.Context, req Request) (string, error) {
			return accounts.ResetPassword(ctx, req.UserID)
		},
		KindCheckTicket: func(ctx context.Context, req Request) (string, error) {
			id, ok := ExtractTicketID(req.Query)
			if !ok {
				return "", ErrMissingTicketID
			}
			return tickets.Status(ctx, id)
		},
		KindSummarize: func(_ context.Context, req Request) (string, error) {
			return Summarize(req.Docs, d.summaryRunes), nil
		},
	}
	return d
}

// Dispatch runs the action for intent. Handler errors and panics become an
// apology in Result with Name still set; a missing ticket id becomes a
// clarification with no Name.
func (d *Dispatcher) Dispatch(ctx context.Context, intent string, req Request) domain.ActionOutcome {
	kind := KindFor(intent)
	h, ok := d.table[kind]
	if kind == KindNone || !ok {
		return domain.ActionOutcome{}
	}
	res, err := d.run(ctx, h, req)
	switch {
	case errors.Is(err, ErrMissingTicketID):
		d.log.Debug("Ticket intent without id; asking for clarification")
		return domain.ActionOutcome{Result: TicketClarification}
	case err != nil:
		d.log.Warn("Action failed", "action", kind.String(), "error", err)
		return domain.ActionOutcome{Name: kind.String(), Result: fmt.Sprintf("Sorry, the %s action failed: %v", kind, err)}
	}
	d.log.Info("Action executed", "action", kind.String())
	return domain.ActionOutcome{Name: kind.String(), Result: res}
}

func (d *Dispatcher) run(ctx context.Context, h handler, req Request) (res string, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = "", fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, req)
}

// Summarize joins the document texts with single spaces and keeps the first
// maxRunes runes, always marking the cut with "...".
func Summarize(docs []domain.RetrievedDocument, maxRunes int) string {
	if len(docs) == 0 {
		return NoDocumentsSummary
	}
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Text)
	}
	joined := []rune(strings.Join(texts, " "))
	if len(joined) > maxRunes {
		joined = joined[:maxRunes]
	}
	return "Summary: " + string(joined) + "..."
}

// StaticAccounts points users at self-service reset.
type StaticAccounts struct{}

func (StaticAccounts) ResetPassword(context.Context, string) (string, error) {
	return "You can reset your password from the login page under 'Forgot Password'.", nil
}

// StaticTickets reports every ticket as in progress.
type StaticTickets struct{}

func (StaticTickets) Status(_ context.Context, ticketID string) (string, error) {
	return fmt.Sprintf("Ticket %s is currently being processed by the support team.", ticketID), nil
}
