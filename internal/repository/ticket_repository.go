package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpline/escalation-service/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, status *domain.TicketStatus) ([]domain.Ticket, error)
	MarkResolved(ctx context.Context, id string, resolvedAt time.Time) (*domain.Ticket, error)
	MarkCancelled(ctx context.Context, id string, reason string) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, call_id, requester_id, question_text, status, created_at, expires_at, resolved_at, cancel_reason`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (call_id, requester_id, question_text, status, expires_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		ticket.CallID,
		ticket.RequesterID,
		ticket.QuestionText,
		ticket.Status,
		ticket.ExpiresAt,
	).Scan(&ticket.ID, &ticket.CreatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

// List returns tickets newest first, optionally filtered by status. For
// the pending filter, tickets past their expiry are excluded (soft
// expiry, evaluated at query time).
func (r *ticketRepository) List(ctx context.Context, status *domain.TicketStatus) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`

	var rows pgx.Rows
	var err error
	switch {
	case status == nil:
		rows, err = r.pool.Query(ctx, base+` ORDER BY created_at DESC`)
	case *status == domain.TicketStatusPending:
		rows, err = r.pool.Query(ctx,
			base+` WHERE status=$1 AND expires_at > NOW() ORDER BY created_at DESC`,
			*status)
	default:
		rows, err = r.pool.Query(ctx,
			base+` WHERE status=$1 ORDER BY created_at DESC`,
			*status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) MarkResolved(ctx context.Context, id string, resolvedAt time.Time) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets SET status=$1, resolved_at=$2
        WHERE id=$3
        RETURNING ` + ticketColumns
	return r.scanRow(r.pool.QueryRow(ctx, query, domain.TicketStatusResolved, resolvedAt, id))
}

func (r *ticketRepository) MarkCancelled(ctx context.Context, id string, reason string) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets SET status=$1, cancel_reason=$2
        WHERE id=$3
        RETURNING ` + ticketColumns
	return r.scanRow(r.pool.QueryRow(ctx, query, domain.TicketStatusCancelled, reason, id))
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	return r.scanRow(r.pool.QueryRow(ctx, query, arg))
}

func (r *ticketRepository) scanRow(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.CallID,
		&ticket.RequesterID,
		&ticket.QuestionText,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.ExpiresAt,
		&ticket.ResolvedAt,
		&ticket.CancelReason,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.CallID,
			&ticket.RequesterID,
			&ticket.QuestionText,
			&ticket.Status,
			&ticket.CreatedAt,
			&ticket.ExpiresAt,
			&ticket.ResolvedAt,
			&ticket.CancelReason,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
