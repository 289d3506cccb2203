package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helpline/escalation-service/internal/bus"
	"github.com/helpline/escalation-service/internal/domain"
	"github.com/helpline/escalation-service/internal/events"
	"github.com/helpline/escalation-service/internal/repository"
	apperrors "github.com/helpline/escalation-service/pkg/util"
)

// FactCreator derives a knowledge fact from a resolved ticket.
type FactCreator interface {
	CreateFromResolution(ctx context.Context, question, answer string, sourceTicketID string) (*domain.Fact, error)
}

// RequesterNotifier delivers the resolution notice to the requester.
type RequesterNotifier interface {
	NotifyRequesterResolved(ctx context.Context, ticket *domain.Ticket, answerText string) error
}

// ResolutionService converts a human answer into the full set of durable
// effects: reply record, knowledge fact, resolved ticket, requester
// notification. Steps run in that order; partial completion after the
// reply record leaves the system recoverable, never corrupt.
type ResolutionService struct {
	tickets       repository.TicketRepository
	replies       repository.ReplyRepository
	facts         FactCreator
	notifier      RequesterNotifier
	bus           bus.Bus
	answerChannel string
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// ResolutionDependencies bundles collaborators for construction.
type ResolutionDependencies struct {
	TicketRepo    repository.TicketRepository
	ReplyRepo     repository.ReplyRepository
	Facts         FactCreator
	Notifier      RequesterNotifier
	Bus           bus.Bus
	AnswerChannel string
	Dispatcher    events.Dispatcher
}

// NewResolutionService constructs the service.
func NewResolutionService(deps ResolutionDependencies, logger *zap.Logger) *ResolutionService {
	return &ResolutionService{
		tickets:       deps.TicketRepo,
		replies:       deps.ReplyRepo,
		facts:         deps.Facts,
		notifier:      deps.Notifier,
		bus:           deps.Bus,
		answerChannel: deps.AnswerChannel,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		now:           time.Now,
	}
}

// Resolve runs the pipeline for one ticket.
//
//  1. Look up the ticket; absence aborts with NOT_FOUND and no side
//     effects.
//  2. Create the supervisor reply. A unique violation means another
//     resolver already won; abort with CONFLICT, steps 3-5 never run.
//  3. Derive the knowledge fact from the ticket question and the reply
//     text as persisted (not the raw input).
//  4. Mark the ticket resolved with a resolution timestamp.
//  5. Best-effort: publish the answer event on the bus and notify the
//     requester. Failures here are logged and do not undo steps 1-4.
func (s *ResolutionService) Resolve(ctx context.Context, ticketID, answerText string, responderID *string) (*domain.Ticket, *domain.SupervisorReply, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	reply := &domain.SupervisorReply{
		TicketID:    ticket.ID,
		ResponderID: responderID,
		AnswerText:  answerText,
	}
	if err := s.replies.Create(ctx, reply); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	if _, err := s.facts.CreateFromResolution(ctx, ticket.QuestionText, reply.AnswerText, ticket.ID); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	resolved, err := s.tickets.MarkResolved(ctx, ticket.ID, s.now())
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	s.publishAnswer(ctx, resolved, reply)
	if err := s.notifier.NotifyRequesterResolved(ctx, resolved, reply.AnswerText); err != nil {
		s.logger.Warn("requester notification failed",
			zap.String("ticket_id", resolved.ID), zap.Error(err))
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: resolved.ID,
		Payload: events.TicketResolvedPayload{
			AnswerText:  reply.AnswerText,
			ResponderID: reply.ResponderID,
		},
	})

	return resolved, reply, nil
}

// Cancel transitions a ticket to the terminal cancelled state with a
// reason. No fact is derived and no resolution notification goes out.
func (s *ResolutionService) Cancel(ctx context.Context, ticketID, reason string) (*domain.Ticket, error) {
	if reason == "" {
		reason = "cancelled by supervisor"
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if ticket.Status != domain.TicketStatusPending {
		return nil, apperrors.NewConflict("only pending tickets can be cancelled",
			map[string]any{"status": string(ticket.Status)})
	}
	cancelled, err := s.tickets.MarkCancelled(ctx, ticketID, reason)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCancelled,
		TicketID: cancelled.ID,
		Payload:  events.TicketCancelledPayload{CancelReason: reason},
	})
	return cancelled, nil
}

// publishAnswer fires the bus event that wakes any registry waiter.
// Best-effort: a bus outage must not fail an already-resolved ticket,
// the agent's polling fallback covers delivery.
func (s *ResolutionService) publishAnswer(ctx context.Context, ticket *domain.Ticket, reply *domain.SupervisorReply) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(events.NewTicketAnswered(ticket, reply))
	if err != nil {
		s.logger.Warn("marshal answer event", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, s.answerChannel, payload); err != nil {
		s.logger.Warn("publish answer event",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (s *ResolutionService) publishEvent(ctx context.Context, event events.Event) {
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
