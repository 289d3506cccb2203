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

// TicketOperations is the slice of ticket workflows the handler needs.
type TicketOperations interface {
	Escalate(ctx context.Context, input service.TicketCreateInput) (*domain.Ticket, error)
	List(ctx context.Context, status *domain.TicketStatus) ([]domain.Ticket, error)
	GetWithAnswer(ctx context.Context, ticketID string) (*service.TicketWithAnswer, error)
}

// ResolutionOperations is the resolve/cancel surface of the pipeline.
type ResolutionOperations interface {
	Resolve(ctx context.Context, ticketID, answerText string, responderID *string) (*domain.Ticket, *domain.SupervisorReply, error)
	Cancel(ctx context.Context, ticketID, reason string) (*domain.Ticket, error)
}

// TicketsHandler manages supervisor-facing ticket endpoints.
type TicketsHandler struct {
	tickets    TicketOperations
	resolution ResolutionOperations
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketOperations, resolution ResolutionOperations) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, resolution: resolution}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	var status *domain.TicketStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		s := domain.TicketStatus(raw)
		switch s {
		case domain.TicketStatusPending, domain.TicketStatusInProgress, domain.TicketStatusResolved,
			domain.TicketStatusCancelled, domain.TicketStatusExpired:
			status = &s
		default:
			return apperrors.NewValidationError("unknown status filter", map[string]any{"status": raw})
		}
	}

	tickets, err := h.tickets.List(c.UserContext(), status)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketFromDomain(&tickets[i], nil))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RequesterID == "" || strings.TrimSpace(req.QuestionText) == "" || req.ExpiresAt == nil {
		return apperrors.NewValidationError("requester_id, question_text, expires_at required", nil)
	}

	ticket, err := h.tickets.Escalate(c.UserContext(), service.TicketCreateInput{
		RequesterID:  req.RequesterID,
		CallID:       req.CallID,
		QuestionText: req.QuestionText,
		ExpiresAt:    *req.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.TicketFromDomain(ticket, nil)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.tickets.GetWithAnswer(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(detail.Ticket, detail.Reply)})
}

// ResolveTicket POST /tickets/:id/resolve.
func (h *TicketsHandler) ResolveTicket(c *fiber.Ctx) error {
	var req dto.ResolveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.AnswerText) == "" {
		return apperrors.NewValidationError("answer_text required", nil)
	}

	ticket, reply, err := h.resolution.Resolve(c.UserContext(), c.Params("id"), req.AnswerText, req.ResponderID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket, reply)})
}

// CancelTicket POST /tickets/:id/cancel.
func (h *TicketsHandler) CancelTicket(c *fiber.Ctx) error {
	var req dto.CancelTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.CancelReason) == "" {
		return apperrors.NewValidationError("cancel_reason required", nil)
	}

	ticket, err := h.resolution.Cancel(c.UserContext(), c.Params("id"), req.CancelReason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket, nil)})
}
