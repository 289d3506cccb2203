package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpline/escalation-service/internal/domain"
)

// FactMatch pairs a fact with its cosine similarity to a query vector.
type FactMatch struct {
	Fact       domain.Fact
	Similarity float64
}

// FactRepository persists knowledge-base facts and supports both
// substring listing and vector nearest-neighbor search.
type FactRepository interface {
	Create(ctx context.Context, fact *domain.Fact) error
	Update(ctx context.Context, fact *domain.Fact) error
	GetByID(ctx context.Context, id string) (*domain.Fact, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q string) ([]domain.Fact, error)
	SearchByEmbedding(ctx context.Context, queryVec []float32, k int) ([]FactMatch, error)
}

type factRepository struct {
	pool *pgxpool.Pool
}

// NewFactRepository instantiates repository.
func NewFactRepository(pool *pgxpool.Pool) FactRepository {
	return &factRepository{pool: pool}
}

const factColumns = `id, question_text_example, answer_text, source_ticket_id, valid_to, created_at, updated_at`

func (r *factRepository) Create(ctx context.Context, fact *domain.Fact) error {
	const query = `
        INSERT INTO knowledge_facts (question_text_example, answer_text, embedding, source_ticket_id, valid_to)
        VALUES ($1,$2,$3::vector,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		fact.QuestionExample,
		fact.AnswerText,
		vectorParam(fact.Embedding),
		fact.SourceTicketID,
		fact.ValidTo,
	).Scan(&fact.ID, &fact.CreatedAt, &fact.UpdatedAt)
}

func (r *factRepository) Update(ctx context.Context, fact *domain.Fact) error {
	const query = `
        UPDATE knowledge_facts
        SET question_text_example=$1, answer_text=$2, embedding=$3::vector, valid_to=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		fact.QuestionExample,
		fact.AnswerText,
		vectorParam(fact.Embedding),
		fact.ValidTo,
		fact.ID,
	).Scan(&fact.UpdatedAt)
	return err
}

func (r *factRepository) GetByID(ctx context.Context, id string) (*domain.Fact, error) {
	const query = `SELECT ` + factColumns + ` FROM knowledge_facts WHERE id=$1`
	var fact domain.Fact
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&fact.ID,
		&fact.QuestionExample,
		&fact.AnswerText,
		&fact.SourceTicketID,
		&fact.ValidTo,
		&fact.CreatedAt,
		&fact.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &fact, nil
}

func (r *factRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM knowledge_facts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// List returns facts newest first, optionally filtered by a
// case-insensitive substring over question or answer text.
func (r *factRepository) List(ctx context.Context, q string) ([]domain.Fact, error) {
	base := `SELECT ` + factColumns + ` FROM knowledge_facts`

	var rows pgx.Rows
	var err error
	if strings.TrimSpace(q) == "" {
		rows, err = r.pool.Query(ctx, base+` ORDER BY created_at DESC`)
	} else {
		search := "%" + strings.TrimSpace(q) + "%"
		rows, err = r.pool.Query(ctx,
			base+` WHERE question_text_example ILIKE $1 OR answer_text ILIKE $1 ORDER BY created_at DESC`,
			search)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Fact
	for rows.Next() {
		var fact domain.Fact
		if err := rows.Scan(
			&fact.ID,
			&fact.QuestionExample,
			&fact.AnswerText,
			&fact.SourceTicketID,
			&fact.ValidTo,
			&fact.CreatedAt,
			&fact.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, fact)
	}
	return result, rows.Err()
}

// SearchByEmbedding ranks valid facts by cosine similarity to queryVec,
// best first. Facts whose valid_to has passed are excluded; pgvector's
// <=> operator yields cosine distance, converted to similarity in [0,1].
func (r *factRepository) SearchByEmbedding(ctx context.Context, queryVec []float32, k int) ([]FactMatch, error) {
	if k <= 0 {
		k = 5
	}
	const query = `
        SELECT id, question_text_example, answer_text, source_ticket_id, valid_to, created_at, updated_at,
               1 - (embedding <=> $1::vector) AS similarity
        FROM knowledge_facts
        WHERE embedding IS NOT NULL
          AND (valid_to IS NULL OR valid_to > NOW())
        ORDER BY embedding <=> $1::vector
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, vectorParam(queryVec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []FactMatch
	for rows.Next() {
		var match FactMatch
		if err := rows.Scan(
			&match.Fact.ID,
			&match.Fact.QuestionExample,
			&match.Fact.AnswerText,
			&match.Fact.SourceTicketID,
			&match.Fact.ValidTo,
			&match.Fact.CreatedAt,
			&match.Fact.UpdatedAt,
			&match.Similarity,
		); err != nil {
			return nil, err
		}
		result = append(result, match)
	}
	return result, rows.Err()
}

// vectorParam renders a float slice as a pgvector literal, or nil so the
// column stays NULL when no embedding was computed.
func vectorParam(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
