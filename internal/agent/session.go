package agent

import (
	"context"

	"github.com/helpline/escalation-service/internal/domain"
)

// CustomerCreator registers a requester record when a call starts.
type CustomerCreator interface {
	CreateForSession(ctx context.Context, displayName string) (*domain.Customer, error)
}

// BeginSession registers the caller and returns the session identity the
// flow needs for escalation. The customer row exists before any ticket
// can reference it, so a mid-call escalation never races registration.
func BeginSession(ctx context.Context, customers CustomerCreator, displayName string, callID *string) (SessionContext, error) {
	customer, err := customers.CreateForSession(ctx, displayName)
	if err != nil {
		return SessionContext{}, err
	}
	return SessionContext{CustomerID: customer.ID, CallID: callID}, nil
}
