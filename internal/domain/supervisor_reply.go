package domain

import "time"

// SupervisorReply is the human-provided answer for a ticket. At most one
// reply exists per ticket (unique constraint); the record is immutable
// once created.
type SupervisorReply struct {
	ID          string
	TicketID    string
	ResponderID *string
	AnswerText  string
	CreatedAt   time.Time
}
