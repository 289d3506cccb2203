package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpline/escalation-service/internal/domain"
)

// ReplyRepository persists supervisor replies. Create fails with a
// unique violation when the ticket already has an answer; that failure
// is what makes concurrent resolutions of one ticket an
// at-most-once-effectively-wins race.
type ReplyRepository interface {
	Create(ctx context.Context, reply *domain.SupervisorReply) error
	GetByTicket(ctx context.Context, ticketID string) (*domain.SupervisorReply, error)
}

type replyRepository struct {
	pool *pgxpool.Pool
}

// NewReplyRepository instantiates repository.
func NewReplyRepository(pool *pgxpool.Pool) ReplyRepository {
	return &replyRepository{pool: pool}
}

func (r *replyRepository) Create(ctx context.Context, reply *domain.SupervisorReply) error {
	const query = `
        INSERT INTO supervisor_replies (ticket_id, responder_id, answer_text)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		reply.TicketID,
		reply.ResponderID,
		reply.AnswerText,
	).Scan(&reply.ID, &reply.CreatedAt)
}

// GetByTicket returns the reply for a ticket, or nil when none exists.
func (r *replyRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.SupervisorReply, error) {
	const query = `
        SELECT id, ticket_id, responder_id, answer_text, created_at
        FROM supervisor_replies WHERE ticket_id=$1`
	var reply domain.SupervisorReply
	err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&reply.ID,
		&reply.TicketID,
		&reply.ResponderID,
		&reply.AnswerText,
		&reply.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reply, nil
}
