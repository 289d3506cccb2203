package domain

import "time"

// Customer is the requester of escalation tickets. For voice sessions a
// lightweight record is created when the session starts.
type Customer struct {
	ID          string
	DisplayName *string
	PhoneE164   *string
	CreatedAt   time.Time
}
