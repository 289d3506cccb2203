package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/helpline/escalation-service/internal/bus"
	"github.com/helpline/escalation-service/internal/domain"
	"github.com/helpline/escalation-service/internal/events"
	apperrors "github.com/helpline/escalation-service/pkg/util"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo(tickets ...*domain.Ticket) *fakeTicketRepo {
	repo := &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
	for _, t := range tickets {
		repo.tickets[t.ID] = t
	}
	return repo
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = "generated-id"
	}
	ticket.CreatedAt = time.Now()
	r.tickets[ticket.ID] = ticket
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) List(_ context.Context, status *domain.TicketStatus) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range r.tickets {
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTicketRepo) MarkResolved(_ context.Context, id string, resolvedAt time.Time) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	ticket.Status = domain.TicketStatusResolved
	ticket.ResolvedAt = &resolvedAt
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) MarkCancelled(_ context.Context, id string, reason string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	ticket.Status = domain.TicketStatusCancelled
	ticket.CancelReason = &reason
	copied := *ticket
	return &copied, nil
}

// fakeReplyRepo enforces the one-reply-per-ticket unique constraint the
// same way Postgres does, with error code 23505.
type fakeReplyRepo struct {
	replies map[string]*domain.SupervisorReply
}

func newFakeReplyRepo() *fakeReplyRepo {
	return &fakeReplyRepo{replies: make(map[string]*domain.SupervisorReply)}
}

func (r *fakeReplyRepo) Create(_ context.Context, reply *domain.SupervisorReply) error {
	if _, exists := r.replies[reply.TicketID]; exists {
		return &pgconn.PgError{Code: "23505", ConstraintName: "supervisor_replies_ticket_id_key"}
	}
	reply.ID = "reply-" + reply.TicketID
	reply.CreatedAt = time.Now()
	copied := *reply
	r.replies[reply.TicketID] = &copied
	return nil
}

func (r *fakeReplyRepo) GetByTicket(_ context.Context, ticketID string) (*domain.SupervisorReply, error) {
	reply, ok := r.replies[ticketID]
	if !ok {
		return nil, nil
	}
	copied := *reply
	return &copied, nil
}

type fakeFactCreator struct {
	calls []struct {
		question, answer, ticketID string
	}
	err error
}

func (f *fakeFactCreator) CreateFromResolution(_ context.Context, question, answer, sourceTicketID string) (*domain.Fact, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, struct{ question, answer, ticketID string }{question, answer, sourceTicketID})
	return &domain.Fact{ID: "fact-1", QuestionExample: question, AnswerText: answer}, nil
}

type fakeNotifier struct {
	notified []string
	err      error
}

func (f *fakeNotifier) NotifyRequesterResolved(_ context.Context, ticket *domain.Ticket, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.notified = append(f.notified, ticket.ID)
	return nil
}

func pendingTicket(id, question string) *domain.Ticket {
	return &domain.Ticket{
		ID:           id,
		RequesterID:  "cust-1",
		QuestionText: question,
		Status:       domain.TicketStatusPending,
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}
}

type resolutionFixture struct {
	svc      *ResolutionService
	tickets  *fakeTicketRepo
	replies  *fakeReplyRepo
	facts    *fakeFactCreator
	notifier *fakeNotifier
	bus      *bus.MemoryBus
}

func newResolutionFixture(t *testing.T, tickets ...*domain.Ticket) *resolutionFixture {
	t.Helper()
	f := &resolutionFixture{
		tickets:  newFakeTicketRepo(tickets...),
		replies:  newFakeReplyRepo(),
		facts:    &fakeFactCreator{},
		notifier: &fakeNotifier{},
		bus:      bus.NewMemoryBus(),
	}
	t.Cleanup(f.bus.Close)
	f.svc = NewResolutionService(ResolutionDependencies{
		TicketRepo:    f.tickets,
		ReplyRepo:     f.replies,
		Facts:         f.facts,
		Notifier:      f.notifier,
		Bus:           f.bus,
		AnswerChannel: "ticket_answers",
		Dispatcher:    events.NewInMemoryDispatcher(),
	}, zap.NewNop())
	return f
}

func TestResolveRunsFullPipeline(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t, pendingTicket("t-1", "How do I reset my password?"))

	sub, err := f.bus.Subscribe(ctx, "ticket_answers")
	if err != nil {
		t.Fatal(err)
	}

	responder := "hr-3"
	ticket, reply, err := f.svc.Resolve(ctx, "t-1", "Use the self-service portal.", &responder)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if ticket.Status != domain.TicketStatusResolved || ticket.ResolvedAt == nil {
		t.Fatalf("ticket not resolved: %+v", ticket)
	}
	if reply.ID == "" || reply.AnswerText != "Use the self-service portal." {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if len(f.facts.calls) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(f.facts.calls))
	}
	call := f.facts.calls[0]
	if call.question != "How do I reset my password?" || call.answer != "Use the self-service portal." || call.ticketID != "t-1" {
		t.Fatalf("fact derived from wrong data: %+v", call)
	}
	if len(f.notifier.notified) != 1 || f.notifier.notified[0] != "t-1" {
		t.Fatalf("requester not notified: %v", f.notifier.notified)
	}

	select {
	case msg := <-sub.Messages():
		var payload events.TicketAnsweredPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("bad answer event: %v", err)
		}
		if payload.ID != "t-1" || payload.AnswerText != "Use the self-service portal." {
			t.Fatalf("unexpected answer event: %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("answer event never published")
	}
}

func TestResolveUnknownTicket(t *testing.T) {
	f := newResolutionFixture(t)

	_, _, err := f.svc.Resolve(context.Background(), "missing", "answer", nil)
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if len(f.facts.calls) != 0 || len(f.notifier.notified) != 0 {
		t.Fatal("side effects after lookup failure")
	}
}

func TestSecondResolveConflicts(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t, pendingTicket("t-1", "q"))

	if _, _, err := f.svc.Resolve(ctx, "t-1", "first answer", nil); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	_, _, err := f.svc.Resolve(ctx, "t-1", "second answer", nil)
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}

	if len(f.facts.calls) != 1 {
		t.Fatalf("losing resolver created a fact: %d calls", len(f.facts.calls))
	}
	reply, _ := f.replies.GetByTicket(ctx, "t-1")
	if reply.AnswerText != "first answer" {
		t.Fatalf("winning answer overwritten: %q", reply.AnswerText)
	}
}

func TestFactFailureStopsPipeline(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t, pendingTicket("t-1", "q"))
	f.facts.err = errors.New("fact store down")

	_, _, err := f.svc.Resolve(ctx, "t-1", "answer", nil)
	if err == nil {
		t.Fatal("expected error")
	}

	ticket, _ := f.tickets.GetByID(ctx, "t-1")
	if ticket.Status != domain.TicketStatusPending {
		t.Fatalf("ticket advanced past failed step: %s", ticket.Status)
	}
	if len(f.notifier.notified) != 0 {
		t.Fatal("notification sent despite pipeline failure")
	}
}

func TestNotifierFailureDoesNotFailResolve(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t, pendingTicket("t-1", "q"))
	f.notifier.err = errors.New("sms gateway down")

	ticket, _, err := f.svc.Resolve(ctx, "t-1", "answer", nil)
	if err != nil {
		t.Fatalf("resolve failed on best-effort step: %v", err)
	}
	if ticket.Status != domain.TicketStatusResolved {
		t.Fatalf("ticket not resolved: %s", ticket.Status)
	}
}

func TestCancelPendingTicket(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t, pendingTicket("t-1", "q"))

	cancelled, err := f.svc.Cancel(ctx, "t-1", "duplicate")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.TicketStatusCancelled {
		t.Fatalf("unexpected status %s", cancelled.Status)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "duplicate" {
		t.Fatalf("reason not recorded: %v", cancelled.CancelReason)
	}
	if len(f.facts.calls) != 0 || len(f.notifier.notified) != 0 {
		t.Fatal("cancel produced resolution side effects")
	}
}

func TestCancelNonPendingTicket(t *testing.T) {
	ctx := context.Background()
	resolved := pendingTicket("t-1", "q")
	resolved.Status = domain.TicketStatusResolved
	f := newResolutionFixture(t, resolved)

	_, err := f.svc.Cancel(ctx, "t-1", "too late")
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}
