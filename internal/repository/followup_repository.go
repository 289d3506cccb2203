package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpline/escalation-service/internal/domain"
)

// FollowupRepository persists outbound notification records.
type FollowupRepository interface {
	Create(ctx context.Context, followup *domain.Followup) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Followup, error)
	UpdateStatus(ctx context.Context, id string, status domain.FollowupStatus, sentAt *time.Time) error
}

type followupRepository struct {
	pool *pgxpool.Pool
}

// NewFollowupRepository instantiates repository.
func NewFollowupRepository(pool *pgxpool.Pool) FollowupRepository {
	return &followupRepository{pool: pool}
}

func (r *followupRepository) Create(ctx context.Context, followup *domain.Followup) error {
	const query = `
        INSERT INTO followups (ticket_id, requester_id, channel, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		followup.TicketID,
		followup.RequesterID,
		followup.Channel,
		followup.Status,
	).Scan(&followup.ID, &followup.CreatedAt)
}

func (r *followupRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Followup, error) {
	const query = `
        SELECT id, ticket_id, requester_id, channel, status, created_at, sent_at
        FROM followups WHERE ticket_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Followup
	for rows.Next() {
		var followup domain.Followup
		if err := rows.Scan(
			&followup.ID,
			&followup.TicketID,
			&followup.RequesterID,
			&followup.Channel,
			&followup.Status,
			&followup.CreatedAt,
			&followup.SentAt,
		); err != nil {
			return nil, err
		}
		result = append(result, followup)
	}
	return result, rows.Err()
}

// UpdateStatus transitions a followup; when marking sent without an
// explicit timestamp the current time is stamped.
func (r *followupRepository) UpdateStatus(ctx context.Context, id string, status domain.FollowupStatus, sentAt *time.Time) error {
	if status == domain.FollowupStatusSent && sentAt == nil {
		now := time.Now()
		sentAt = &now
	}
	cmd, err := r.pool.Exec(ctx,
		`UPDATE followups SET status=$1, sent_at=COALESCE($2, sent_at) WHERE id=$3`,
		status, sentAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
