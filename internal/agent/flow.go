// Package agent implements the per-question decision the conversational
// assistant makes on the live call path: answer from the knowledge base,
// or escalate to a human responder, speaking a brief status update when
// the lookup is slow.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/helpline/escalation-service/internal/config"
	"github.com/helpline/escalation-service/internal/domain"
	"github.com/helpline/escalation-service/internal/registry"
	"github.com/helpline/escalation-service/internal/service"
)

// Spoken phrases. Status and escalation lines are delivered directly to
// the speech layer, outside the conversation history, so they cannot
// trigger another planning cycle or be repeated alongside a later answer.
const (
	StatusUpdateMessage = "Let me check that for you... one moment."
	EscalationMessage   = "Let me check with my supervisor and get back to you."
)

// State is the terminal state of one lookup.
type State string

const (
	StateAnswered  State = "answered"
	StateEscalated State = "escalated"
)

// Result reports how a query ended.
type Result struct {
	State    State
	Answer   string
	TicketID string
}

// SessionContext carries per-session identity into the flow explicitly,
// instead of smuggling it through attributes bolted onto a session
// object after construction.
type SessionContext struct {
	CustomerID string
	CallID     *string
}

// Oracle ranks knowledge-base candidates for a question.
type Oracle interface {
	SearchByQuestion(ctx context.Context, query string, k int, minSimilarity float64) ([]service.Match, error)
}

// Escalator files an escalation ticket.
type Escalator interface {
	Escalate(ctx context.Context, input service.TicketCreateInput) (*domain.Ticket, error)
}

// SpeechOptions mirror the direct-say controls of the speech layer.
type SpeechOptions struct {
	AllowInterruptions bool
	AddToHistory       bool
}

// Speaker delivers spoken output to the caller.
type Speaker interface {
	Say(ctx context.Context, text string, opts SpeechOptions) error
}

// AnswerWaiter blocks until a ticket is answered.
type AnswerWaiter interface {
	Wait(ctx context.Context, ticketID string, timeout time.Duration) (string, map[string]any, error)
}

// TicketReader fetches a ticket with its answer, used by the polling
// fallback and the resumed-conversation message.
type TicketReader interface {
	GetWithAnswer(ctx context.Context, ticketID string) (*service.TicketWithAnswer, error)
}

// ErrNoRequester is returned when escalation is needed but the session
// carries no customer identity.
var ErrNoRequester = errors.New("agent: session has no requester, cannot escalate")

// Flow runs the lookup-and-escalate decision for one session.
type Flow struct {
	oracle  Oracle
	tickets Escalator
	reader  TicketReader
	waiter  AnswerWaiter
	speaker Speaker
	session SessionContext
	cfg     config.AgentConfig
	logger  *zap.Logger
	now     func() time.Time
}

// FlowDependencies bundles collaborators for construction.
type FlowDependencies struct {
	Oracle  Oracle
	Tickets Escalator
	Reader  TicketReader
	Waiter  AnswerWaiter
	Speaker Speaker
}

// NewFlow constructs a flow bound to one session.
func NewFlow(deps FlowDependencies, session SessionContext, cfg config.AgentConfig, logger *zap.Logger) *Flow {
	return &Flow{
		oracle:  deps.Oracle,
		tickets: deps.Tickets,
		reader:  deps.Reader,
		waiter:  deps.Waiter,
		speaker: deps.Speaker,
		session: session,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Answer resolves one customer question. The knowledge search races a
// short status timer: if the search finishes first the timer branch
// exits silently, otherwise exactly one non-committal update is spoken.
// The status branch is always finished before Answer returns, so it can
// never fire after the turn has ended.
func (f *Flow) Answer(ctx context.Context, query string) (*Result, error) {
	searchDone := make(chan struct{})
	statusDone := make(chan struct{})
	go f.speakStatusIfSlow(ctx, searchDone, statusDone)

	matches, err := f.oracle.SearchByQuestion(ctx, query, 1, f.cfg.ConfidenceThreshold)
	close(searchDone)
	<-statusDone

	if err != nil {
		if !f.cfg.EscalateOnOracleError {
			return nil, err
		}
		f.logger.Warn("knowledge search failed, escalating", zap.Error(err))
		matches = nil
	}

	if len(matches) > 0 {
		return &Result{State: StateAnswered, Answer: matches[0].Fact.AnswerText}, nil
	}
	return f.escalate(ctx, query)
}

func (f *Flow) speakStatusIfSlow(ctx context.Context, searchDone <-chan struct{}, statusDone chan<- struct{}) {
	defer close(statusDone)
	timer := time.NewTimer(f.cfg.StatusUpdateDelay())
	defer timer.Stop()

	select {
	case <-searchDone:
		return
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	if err := f.speaker.Say(ctx, StatusUpdateMessage, SpeechOptions{AllowInterruptions: true}); err != nil {
		f.logger.Warn("status update speech failed", zap.Error(err))
	}
}

func (f *Flow) escalate(ctx context.Context, query string) (*Result, error) {
	if f.session.CustomerID == "" {
		return nil, ErrNoRequester
	}

	ticket, err := f.tickets.Escalate(ctx, service.TicketCreateInput{
		RequesterID:  f.session.CustomerID,
		CallID:       f.session.CallID,
		QuestionText: query,
		ExpiresAt:    f.now().Add(f.cfg.TicketTTL()),
	})
	if err != nil {
		return nil, err
	}

	if err := f.speaker.Say(ctx, EscalationMessage, SpeechOptions{AllowInterruptions: false}); err != nil {
		f.logger.Warn("escalation speech failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return &Result{State: StateEscalated, TicketID: ticket.ID}, nil
}

// AwaitResolution suspends until the escalated ticket is answered, then
// re-engages the caller with the resumed-conversation message. When the
// registry listener is unavailable it falls back to a direct read of the
// ticket store; a timeout is returned to the caller unchanged.
func (f *Flow) AwaitResolution(ctx context.Context, ticketID string, timeout time.Duration) (string, map[string]any, error) {
	answer, payload, err := f.waiter.Wait(ctx, ticketID, timeout)
	if err != nil {
		if errors.Is(err, registry.ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", nil, err
		}
		f.logger.Warn("answer listener unavailable, polling ticket store",
			zap.String("ticket_id", ticketID), zap.Error(err))
		answer, payload, err = f.pollAnswer(ctx, ticketID)
		if err != nil {
			return "", nil, err
		}
	}

	question := f.originalQuestion(ctx, ticketID)
	resume := fmt.Sprintf("Sorry for the delay, I've got an answer to your question: %s. The answer is: %s", question, answer)
	if err := f.speaker.Say(ctx, resume, SpeechOptions{AllowInterruptions: true}); err != nil {
		f.logger.Warn("resume speech failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	return answer, payload, nil
}

func (f *Flow) pollAnswer(ctx context.Context, ticketID string) (string, map[string]any, error) {
	detail, err := f.reader.GetWithAnswer(ctx, ticketID)
	if err != nil {
		return "", nil, err
	}
	if detail.Reply == nil {
		return "", nil, fmt.Errorf("agent: ticket %s not yet answered", ticketID)
	}
	payload := map[string]any{"id": ticketID, "answer_text": detail.Reply.AnswerText}
	if detail.Reply.ResponderID != nil {
		payload["responder_id"] = *detail.Reply.ResponderID
	}
	return detail.Reply.AnswerText, payload, nil
}

func (f *Flow) originalQuestion(ctx context.Context, ticketID string) string {
	detail, err := f.reader.GetWithAnswer(ctx, ticketID)
	if err != nil || detail.Ticket == nil {
		return "your earlier question"
	}
	return detail.Ticket.QuestionText
}
