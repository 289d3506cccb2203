package dto

import (
	"time"

	"github.com/helpline/escalation-service/internal/domain"
)

// CreateFactRequest payload.
type CreateFactRequest struct {
	QuestionExample string     `json:"question_text_example"`
	AnswerText      string     `json:"answer_text"`
	ValidTo         *time.Time `json:"valid_to"`
}

// UpdateFactRequest payload; empty fields are left unchanged.
type UpdateFactRequest struct {
	QuestionExample string     `json:"question_text_example"`
	AnswerText      string     `json:"answer_text"`
	ValidTo         *time.Time `json:"valid_to"`
}

// FactResponse response.
type FactResponse struct {
	ID              string     `json:"id"`
	QuestionExample string     `json:"question_text_example"`
	AnswerText      string     `json:"answer_text"`
	SourceTicketID  *string    `json:"source_ticket_id,omitempty"`
	ValidTo         *time.Time `json:"valid_to"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FactFromDomain maps a fact to the response.
func FactFromDomain(fact *domain.Fact) FactResponse {
	return FactResponse{
		ID:              fact.ID,
		QuestionExample: fact.QuestionExample,
		AnswerText:      fact.AnswerText,
		SourceTicketID:  fact.SourceTicketID,
		ValidTo:         fact.ValidTo,
		CreatedAt:       fact.CreatedAt,
		UpdatedAt:       fact.UpdatedAt,
	}
}
