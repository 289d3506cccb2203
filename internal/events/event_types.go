package events

import (
	"time"

	"github.com/helpline/escalation-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketEscalated EventType = "ticket_escalated"
	EventTicketResolved  EventType = "ticket_resolved"
	EventTicketCancelled EventType = "ticket_cancelled"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	RequesterID  string `json:"requester_id"`
	QuestionText string `json:"question_text"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	AnswerText  string  `json:"answer_text"`
	ResponderID *string `json:"responder_id,omitempty"`
}

// TicketCancelledPayload payload.
type TicketCancelledPayload struct {
	CancelReason string `json:"cancel_reason"`
}

// TicketAnsweredPayload is the wire payload published on the notification
// bus when a ticket receives an answer. The wait registry matches on ID;
// everything else passes through to waiters opaquely.
type TicketAnsweredPayload struct {
	ID          string  `json:"id"`
	AnswerText  string  `json:"answer_text"`
	ResponderID *string `json:"responder_id,omitempty"`
}

// NewTicketAnswered builds the bus payload from a resolved ticket and
// its supervisor reply.
func NewTicketAnswered(ticket *domain.Ticket, reply *domain.SupervisorReply) TicketAnsweredPayload {
	return TicketAnsweredPayload{
		ID:          ticket.ID,
		AnswerText:  reply.AnswerText,
		ResponderID: reply.ResponderID,
	}
}
