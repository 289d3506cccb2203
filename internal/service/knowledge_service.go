package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helpline/escalation-service/internal/domain"
	"github.com/helpline/escalation-service/internal/embeddings"
	"github.com/helpline/escalation-service/internal/repository"
	apperrors "github.com/helpline/escalation-service/pkg/util"
)

// Match is one ranked knowledge-base candidate for a question.
type Match struct {
	Fact       domain.Fact
	Similarity float64
}

// KnowledgeService owns the knowledge base: authoring CRUD, substring
// listing, and the similarity search the agent consults before
// escalating.
type KnowledgeService struct {
	facts    repository.FactRepository
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewKnowledgeService constructs the service.
func NewKnowledgeService(facts repository.FactRepository, embedder embeddings.Embedder, logger *zap.Logger) *KnowledgeService {
	return &KnowledgeService{facts: facts, embedder: embedder, logger: logger}
}

// FactInput describes authoring payloads.
type FactInput struct {
	QuestionExample string
	AnswerText      string
	ValidTo         *time.Time
}

// Create stores a new fact with an embedding for its example question.
// An embedder outage leaves the fact searchable by substring only; the
// embedding column allows NULL for exactly that case.
func (s *KnowledgeService) Create(ctx context.Context, input FactInput) (*domain.Fact, error) {
	question := strings.TrimSpace(input.QuestionExample)
	answer := strings.TrimSpace(input.AnswerText)
	if question == "" || answer == "" {
		return nil, apperrors.NewValidationError("question_text_example and answer_text required", nil)
	}

	fact := &domain.Fact{
		QuestionExample: question,
		AnswerText:      answer,
		ValidTo:         input.ValidTo,
		Embedding:       s.embed(ctx, question),
	}
	if err := s.facts.Create(ctx, fact); err != nil {
		return nil, apperrors.MapError(err)
	}
	return fact, nil
}

// CreateFromResolution derives a fact from a resolved ticket. Used as
// step 3 of the resolution pipeline.
func (s *KnowledgeService) CreateFromResolution(ctx context.Context, question, answer string, sourceTicketID string) (*domain.Fact, error) {
	fact := &domain.Fact{
		QuestionExample: question,
		AnswerText:      answer,
		SourceTicketID:  &sourceTicketID,
		Embedding:       s.embed(ctx, question),
	}
	if err := s.facts.Create(ctx, fact); err != nil {
		return nil, apperrors.MapError(err)
	}
	return fact, nil
}

// Update modifies an existing fact, re-embedding when the example
// question changed.
func (s *KnowledgeService) Update(ctx context.Context, id string, input FactInput) (*domain.Fact, error) {
	fact, err := s.facts.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if question := strings.TrimSpace(input.QuestionExample); question != "" && question != fact.QuestionExample {
		fact.QuestionExample = question
		fact.Embedding = s.embed(ctx, question)
	}
	if answer := strings.TrimSpace(input.AnswerText); answer != "" {
		fact.AnswerText = answer
	}
	if input.ValidTo != nil {
		fact.ValidTo = input.ValidTo
	}

	if err := s.facts.Update(ctx, fact); err != nil {
		return nil, apperrors.MapError(err)
	}
	return fact, nil
}

// Get fetches one fact.
func (s *KnowledgeService) Get(ctx context.Context, id string) (*domain.Fact, error) {
	fact, err := s.facts.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return fact, nil
}

// Delete removes a fact.
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	if err := s.facts.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// List returns facts matching an optional substring query.
func (s *KnowledgeService) List(ctx context.Context, q string) ([]domain.Fact, error) {
	facts, err := s.facts.List(ctx, q)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return facts, nil
}

// SearchByQuestion embeds the query and returns up to k candidates with
// similarity of at least minSimilarity, best first. Ties keep the
// store's ranking order. Facts past their validity end never appear.
func (s *KnowledgeService) SearchByQuestion(ctx context.Context, query string, k int, minSimilarity float64) ([]Match, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailable("embeddings", err)
	}

	candidates, err := s.facts.SearchByEmbedding(ctx, vec, k)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	matches := make([]Match, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Similarity < minSimilarity {
			continue
		}
		matches = append(matches, Match{Fact: candidate.Fact, Similarity: candidate.Similarity})
	}
	return matches, nil
}

// embed computes the question vector, tolerating provider failures.
func (s *KnowledgeService) embed(ctx context.Context, question string) []float32 {
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.logger.Warn("embedding failed, storing fact without vector",
			zap.String("question", question), zap.Error(err))
		return nil
	}
	return vec
}
