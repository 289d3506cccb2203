package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helpline/escalation-service/internal/config"
	"github.com/helpline/escalation-service/internal/domain"
	"github.com/helpline/escalation-service/internal/events"
	"github.com/helpline/escalation-service/internal/repository"
)

// NotificationService records followups and performs the simulated SMS
// sends. Every send is best-effort: a failure is logged and reported to
// the caller, never escalated into the surrounding operation.
type NotificationService struct {
	followups repository.FollowupRepository
	customers repository.CustomerRepository
	logger    *zap.Logger
	cfg       config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(followups repository.FollowupRepository, customers repository.CustomerRepository, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		followups: followups,
		customers: customers,
		logger:    logger,
		cfg:       cfg,
	}
}

// RegisterHandlers subscribes the responder-alert handler, making the
// supervisor notification on escalation event-driven.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEscalated)
}

func (n *NotificationService) handleTicketEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok {
		n.logger.Warn("unexpected escalation payload", zap.String("ticket_id", event.TicketID))
		return nil
	}
	if err := n.NotifyResponder(ctx, event.TicketID, payload.RequesterID, payload.QuestionText); err != nil {
		n.logger.Warn("responder notification failed",
			zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
	return nil
}

// NotifyResponder records a responder-channel followup and simulates the
// supervisor SMS asking for an answer. A ticket that already carries a
// responder followup is not alerted again.
func (n *NotificationService) NotifyResponder(ctx context.Context, ticketID, requesterID, question string) error {
	if issued, err := n.alreadyIssued(ctx, ticketID, domain.ChannelResponderSMS); err != nil {
		return err
	} else if issued {
		return nil
	}

	followup := &domain.Followup{
		TicketID:    ticketID,
		RequesterID: requesterID,
		Channel:     domain.ChannelResponderSMS,
		Status:      domain.FollowupStatusPending,
	}
	if err := n.followups.Create(ctx, followup); err != nil {
		return err
	}

	message := fmt.Sprintf("Hey! A customer needs help with: %q. Can you provide an answer?", question)
	if err := n.sendSMS(ctx, followup, message); err != nil {
		n.markFailed(ctx, followup)
		return err
	}
	return n.followups.UpdateStatus(ctx, followup.ID, domain.FollowupStatusSent, nil)
}

// NotifyRequesterResolved records a customer-channel followup and
// simulates the resolution SMS back to the original requester. Like the
// responder alert, at most one is issued per ticket.
func (n *NotificationService) NotifyRequesterResolved(ctx context.Context, ticket *domain.Ticket, answerText string) error {
	if issued, err := n.alreadyIssued(ctx, ticket.ID, domain.ChannelCustomerSMS); err != nil {
		return err
	} else if issued {
		return nil
	}

	followup := &domain.Followup{
		TicketID:    ticket.ID,
		RequesterID: ticket.RequesterID,
		Channel:     domain.ChannelCustomerSMS,
		Status:      domain.FollowupStatusPending,
	}
	if err := n.followups.Create(ctx, followup); err != nil {
		return err
	}

	name := "Customer " + ticket.RequesterID
	if customer, err := n.customers.GetByID(ctx, ticket.RequesterID); err == nil && customer.DisplayName != nil {
		name = *customer.DisplayName
	}

	message := fmt.Sprintf("Hi %s! We've got an answer to your question: %q. Here's the response: %s. Thanks for your patience!",
		name, ticket.QuestionText, answerText)
	if err := n.sendSMS(ctx, followup, message); err != nil {
		n.markFailed(ctx, followup)
		return err
	}
	return n.followups.UpdateStatus(ctx, followup.ID, domain.FollowupStatusSent, nil)
}

// alreadyIssued reports whether the ticket has a non-failed followup on
// the given channel. Failed attempts do not count, so a retry after a
// gateway error still goes out.
func (n *NotificationService) alreadyIssued(ctx context.Context, ticketID string, channel domain.FollowupChannel) (bool, error) {
	existing, err := n.followups.ListByTicket(ctx, ticketID)
	if err != nil {
		return false, err
	}
	for _, f := range existing {
		if f.Channel == channel && f.Status != domain.FollowupStatusFailed {
			return true, nil
		}
	}
	return false, nil
}

// sendSMS is the simulated delivery. A real gateway would slot in here.
func (n *NotificationService) sendSMS(ctx context.Context, followup *domain.Followup, message string) error {
	n.logger.Info("sending sms",
		zap.String("from", n.cfg.SMSFrom),
		zap.String("channel", string(followup.Channel)),
		zap.String("ticket_id", followup.TicketID),
		zap.String("requester_id", followup.RequesterID),
		zap.String("message", message))
	return nil
}

func (n *NotificationService) markFailed(ctx context.Context, followup *domain.Followup) {
	if err := n.followups.UpdateStatus(ctx, followup.ID, domain.FollowupStatusFailed, nil); err != nil {
		n.logger.Warn("failed to mark followup failed",
			zap.String("followup_id", followup.ID), zap.Error(err))
	}
}
