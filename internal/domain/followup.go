package domain

import "time"

// FollowupChannel tags the audience of an outbound notification.
type FollowupChannel string

const (
	ChannelResponderSMS FollowupChannel = "responder_sms"
	ChannelCustomerSMS  FollowupChannel = "customer_sms"
)

// FollowupStatus enumerates delivery states.
type FollowupStatus string

const (
	FollowupStatusPending FollowupStatus = "pending"
	FollowupStatusSent    FollowupStatus = "sent"
	FollowupStatusFailed  FollowupStatus = "failed"
)

// Followup records one outbound notification attempt for a ticket.
// The store does not enforce one followup per (ticket, channel); the
// notification service checks existing rows before issuing.
type Followup struct {
	ID          string
	TicketID    string
	RequesterID string
	Channel     FollowupChannel
	Status      FollowupStatus
	CreatedAt   time.Time
	SentAt      *time.Time
}
