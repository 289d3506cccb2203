package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helpline/escalation-service/internal/domain"
	"github.com/helpline/escalation-service/internal/events"
	"github.com/helpline/escalation-service/internal/repository"
	apperrors "github.com/helpline/escalation-service/pkg/util"
)

// TicketService coordinates escalation ticket workflows: creation when
// the knowledge lookup misses, listing for the supervisor tooling, and
// detail reads joined with the answer when resolved.
type TicketService struct {
	tickets    repository.TicketRepository
	replies    repository.ReplyRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	ReplyRepo  repository.ReplyRepository
	Dispatcher events.Dispatcher
}

// TicketCreateInput describes escalation creation payload.
type TicketCreateInput struct {
	RequesterID  string
	CallID       *string
	QuestionText string
	ExpiresAt    time.Time
}

// TicketWithAnswer pairs a ticket with its reply, if any.
type TicketWithAnswer struct {
	Ticket *domain.Ticket
	Reply  *domain.SupervisorReply
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies, logger *zap.Logger) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		replies:    deps.ReplyRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Escalate creates a pending ticket for an unanswered question and
// publishes the escalation event that drives the responder alert.
func (s *TicketService) Escalate(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	question := strings.TrimSpace(input.QuestionText)
	if question == "" {
		return nil, apperrors.NewValidationError("question_text required", nil)
	}
	if input.RequesterID == "" {
		return nil, apperrors.NewValidationError("requester_id required", nil)
	}
	if input.ExpiresAt.IsZero() {
		return nil, apperrors.NewValidationError("expires_at required", nil)
	}

	ticket := &domain.Ticket{
		CallID:       input.CallID,
		RequesterID:  input.RequesterID,
		QuestionText: question,
		Status:       domain.TicketStatusPending,
		ExpiresAt:    input.ExpiresAt,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: ticket.ID,
		Payload: events.TicketEscalatedPayload{
			RequesterID:  ticket.RequesterID,
			QuestionText: ticket.QuestionText,
		},
	})
	return ticket, nil
}

// List returns tickets, optionally filtered by status. The pending view
// excludes soft-expired tickets; in unfiltered views a pending ticket
// past its expiry reads as expired.
func (s *TicketService) List(ctx context.Context, status *domain.TicketStatus) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, status)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.now()
	for i := range tickets {
		if tickets[i].Expired(now) {
			tickets[i].Status = domain.TicketStatusExpired
		}
	}
	return tickets, nil
}

// GetWithAnswer fetches a ticket and, when resolved, its reply. Expiry
// is evaluated at read time: the row keeps its pending status, only the
// view reports expired.
func (s *TicketService) GetWithAnswer(ctx context.Context, ticketID string) (*TicketWithAnswer, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if ticket.Expired(s.now()) {
		ticket.Status = domain.TicketStatusExpired
	}
	result := &TicketWithAnswer{Ticket: ticket}
	if ticket.Status == domain.TicketStatusResolved {
		reply, err := s.replies.GetByTicket(ctx, ticketID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		result.Reply = reply
	}
	return result, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
