package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/helpline/escalation-service/internal/api/dto"
	"github.com/helpline/escalation-service/internal/domain"
	"github.com/helpline/escalation-service/internal/service"
	apperrors "github.com/helpline/escalation-service/pkg/util"
)

// KnowledgeOperations is the authoring surface of the knowledge base.
type KnowledgeOperations interface {
	Create(ctx context.Context, input service.FactInput) (*domain.Fact, error)
	Update(ctx context.Context, id string, input service.FactInput) (*domain.Fact, error)
	Get(ctx context.Context, id string) (*domain.Fact, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q string) ([]domain.Fact, error)
}

// FactsHandler manages knowledge-base endpoints.
type FactsHandler struct {
	knowledge KnowledgeOperations
}

// NewFactsHandler constructs handler.
func NewFactsHandler(knowledge KnowledgeOperations) *FactsHandler {
	return &FactsHandler{knowledge: knowledge}
}

// ListFacts GET /facts.
func (h *FactsHandler) ListFacts(c *fiber.Ctx) error {
	facts, err := h.knowledge.List(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	items := make([]dto.FactResponse, 0, len(facts))
	for i := range facts {
		items = append(items, dto.FactFromDomain(&facts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateFact POST /facts.
func (h *FactsHandler) CreateFact(c *fiber.Ctx) error {
	var req dto.CreateFactRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.QuestionExample) == "" || strings.TrimSpace(req.AnswerText) == "" {
		return apperrors.NewValidationError("question_text_example and answer_text required", nil)
	}

	fact, err := h.knowledge.Create(c.UserContext(), service.FactInput{
		QuestionExample: req.QuestionExample,
		AnswerText:      req.AnswerText,
		ValidTo:         req.ValidTo,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FactFromDomain(fact)})
}

// GetFact GET /facts/:id.
func (h *FactsHandler) GetFact(c *fiber.Ctx) error {
	fact, err := h.knowledge.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FactFromDomain(fact)})
}

// UpdateFact PUT /facts/:id.
func (h *FactsHandler) UpdateFact(c *fiber.Ctx) error {
	var req dto.UpdateFactRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	fact, err := h.knowledge.Update(c.UserContext(), c.Params("id"), service.FactInput{
		QuestionExample: req.QuestionExample,
		AnswerText:      req.AnswerText,
		ValidTo:         req.ValidTo,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FactFromDomain(fact)})
}

// DeleteFact DELETE /facts/:id.
func (h *FactsHandler) DeleteFact(c *fiber.Ctx) error {
	if err := h.knowledge.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
