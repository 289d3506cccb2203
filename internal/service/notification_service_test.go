package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/helpline/escalation-service/internal/config"
	"github.com/helpline/escalation-service/internal/domain"
	"github.com/helpline/escalation-service/internal/events"
)

type fakeFollowupRepo struct {
	followups []*domain.Followup
	createErr error
}

func (r *fakeFollowupRepo) Create(_ context.Context, followup *domain.Followup) error {
	if r.createErr != nil {
		return r.createErr
	}
	followup.ID = fmt.Sprintf("followup-%d", len(r.followups)+1)
	followup.CreatedAt = time.Now()
	r.followups = append(r.followups, followup)
	return nil
}

func (r *fakeFollowupRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Followup, error) {
	var out []domain.Followup
	for _, f := range r.followups {
		if f.TicketID == ticketID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *fakeFollowupRepo) UpdateStatus(_ context.Context, id string, status domain.FollowupStatus, sentAt *time.Time) error {
	for _, f := range r.followups {
		if f.ID == id {
			f.Status = status
			f.SentAt = sentAt
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeCustomerRepo struct {
	customers map[string]*domain.Customer
}

func (r *fakeCustomerRepo) Create(_ context.Context, customer *domain.Customer) error {
	if customer.ID == "" {
		customer.ID = fmt.Sprintf("cust-%d", len(r.customers)+1)
	}
	customer.CreatedAt = time.Now()
	if r.customers == nil {
		r.customers = make(map[string]*domain.Customer)
	}
	r.customers[customer.ID] = customer
	return nil
}

func (r *fakeCustomerRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	customer, ok := r.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return customer, nil
}

func newNotificationFixture() (*NotificationService, *fakeFollowupRepo, *fakeCustomerRepo) {
	followups := &fakeFollowupRepo{}
	customers := &fakeCustomerRepo{customers: make(map[string]*domain.Customer)}
	svc := NewNotificationService(followups, customers, zap.NewNop(),
		config.NotificationConfig{SMSFrom: "+15550100000", AnswerChannel: "ticket_answers"})
	return svc, followups, customers
}

func TestNotifyResponderRecordsFollowup(t *testing.T) {
	svc, followups, _ := newNotificationFixture()

	if err := svc.NotifyResponder(context.Background(), "t-1", "cust-1", "where is aisle four?"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if len(followups.followups) != 1 {
		t.Fatalf("expected 1 followup, got %d", len(followups.followups))
	}
	f := followups.followups[0]
	if f.Channel != domain.ChannelResponderSMS {
		t.Fatalf("wrong channel %s", f.Channel)
	}
	if f.Status != domain.FollowupStatusSent {
		t.Fatalf("followup not marked sent: %s", f.Status)
	}
}

func TestNotifyResponderNotDuplicated(t *testing.T) {
	svc, followups, _ := newNotificationFixture()
	ctx := context.Background()

	if err := svc.NotifyResponder(ctx, "t-1", "cust-1", "q"); err != nil {
		t.Fatalf("first notify failed: %v", err)
	}
	if err := svc.NotifyResponder(ctx, "t-1", "cust-1", "q"); err != nil {
		t.Fatalf("second notify failed: %v", err)
	}

	if len(followups.followups) != 1 {
		t.Fatalf("responder alert double-issued: %d followups", len(followups.followups))
	}
}

func TestNotifyResponderRetriesAfterFailure(t *testing.T) {
	svc, followups, _ := newNotificationFixture()
	ctx := context.Background()

	followups.followups = append(followups.followups, &domain.Followup{
		ID:       "followup-0",
		TicketID: "t-1",
		Channel:  domain.ChannelResponderSMS,
		Status:   domain.FollowupStatusFailed,
	})

	if err := svc.NotifyResponder(ctx, "t-1", "cust-1", "q"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if len(followups.followups) != 2 {
		t.Fatalf("failed attempt blocked the retry: %d followups", len(followups.followups))
	}
}

func TestNotifyRequesterUsesDisplayName(t *testing.T) {
	svc, followups, customers := newNotificationFixture()
	name := "Dana"
	customers.customers["cust-1"] = &domain.Customer{ID: "cust-1", DisplayName: &name}

	ticket := &domain.Ticket{ID: "t-1", RequesterID: "cust-1", QuestionText: "q", Status: domain.TicketStatusResolved}
	if err := svc.NotifyRequesterResolved(context.Background(), ticket, "the answer"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if len(followups.followups) != 1 || followups.followups[0].Channel != domain.ChannelCustomerSMS {
		t.Fatalf("unexpected followups %+v", followups.followups)
	}
}

func TestEscalationEventTriggersResponderAlert(t *testing.T) {
	svc, followups, _ := newNotificationFixture()
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	err := dispatcher.Publish(context.Background(), events.Event{
		ID:       "evt-1",
		Type:     events.EventTicketEscalated,
		TicketID: "t-1",
		Payload:  events.TicketEscalatedPayload{RequesterID: "cust-1", QuestionText: "q"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(followups.followups) != 1 {
		t.Fatalf("escalation event did not record a followup: %d", len(followups.followups))
	}
	if followups.followups[0].Channel != domain.ChannelResponderSMS {
		t.Fatalf("wrong channel %s", followups.followups[0].Channel)
	}
}
