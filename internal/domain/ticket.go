package domain

import "time"

// TicketStatus enumerates lifecycle states for escalation tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusCancelled  TicketStatus = "cancelled"
	TicketStatusExpired    TicketStatus = "expired"
)

// Ticket is the aggregate for a question escalated to a human responder.
// ResolvedAt is set iff the ticket is resolved; CancelReason only when
// cancelled. Expiry is soft: a pending ticket past ExpiresAt is excluded
// from active-pending views at query time, the row is never swept.
type Ticket struct {
	ID           string
	CallID       *string
	RequesterID  string
	QuestionText string
	Status       TicketStatus
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ResolvedAt   *time.Time
	CancelReason *string
}

// Expired reports whether a pending ticket has passed its expiry.
func (t *Ticket) Expired(now time.Time) bool {
	return t.Status == TicketStatusPending && !t.ExpiresAt.IsZero() && !t.ExpiresAt.After(now)
}
