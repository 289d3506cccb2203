package service

import (
	"context"

	"github.com/helpline/escalation-service/internal/domain"
	"github.com/helpline/escalation-service/internal/repository"
	apperrors "github.com/helpline/escalation-service/pkg/util"
)

// CustomerService creates requester records for conversational sessions.
type CustomerService struct {
	customers repository.CustomerRepository
}

// NewCustomerService constructs the service.
func NewCustomerService(customers repository.CustomerRepository) *CustomerService {
	return &CustomerService{customers: customers}
}

// CreateForSession registers a customer when a voice session starts.
// Phone metadata arrives later from telephony, when it arrives at all.
func (s *CustomerService) CreateForSession(ctx context.Context, displayName string) (*domain.Customer, error) {
	customer := &domain.Customer{}
	if displayName != "" {
		customer.DisplayName = &displayName
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, apperrors.MapError(err)
	}
	return customer, nil
}
