package dto

import (
	"time"

	"github.com/helpline/escalation-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	RequesterID  string     `json:"requester_id"`
	CallID       *string    `json:"call_id"`
	QuestionText string     `json:"question_text"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// ResolveTicketRequest payload.
type ResolveTicketRequest struct {
	AnswerText  string  `json:"answer_text"`
	ResponderID *string `json:"responder_id"`
}

// CancelTicketRequest payload.
type CancelTicketRequest struct {
	CancelReason string `json:"cancel_reason"`
}

// TicketResponse response, with the answer when resolved.
type TicketResponse struct {
	ID           string              `json:"id"`
	RequesterID  string              `json:"requester_id"`
	CallID       *string             `json:"call_id,omitempty"`
	QuestionText string              `json:"question_text"`
	Status       domain.TicketStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	ExpiresAt    time.Time           `json:"expires_at"`
	ResolvedAt   *time.Time          `json:"resolved_at"`
	CancelReason *string             `json:"cancel_reason,omitempty"`
	AnswerText   *string             `json:"answer_text,omitempty"`
}

// TicketFromDomain maps a ticket and optional reply to the response.
func TicketFromDomain(ticket *domain.Ticket, reply *domain.SupervisorReply) TicketResponse {
	out := TicketResponse{
		ID:           ticket.ID,
		RequesterID:  ticket.RequesterID,
		CallID:       ticket.CallID,
		QuestionText: ticket.QuestionText,
		Status:       ticket.Status,
		CreatedAt:    ticket.CreatedAt,
		ExpiresAt:    ticket.ExpiresAt,
		ResolvedAt:   ticket.ResolvedAt,
		CancelReason: ticket.CancelReason,
	}
	if reply != nil {
		out.AnswerText = &reply.AnswerText
	}
	return out
}
