package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-desk/internal/api/dto"
	"github.com/spec-kit/triage-desk/internal/auth"
	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/service"
	apperrors "github.com/spec-kit/triage-desk/pkg/util"
)

// TicketOperations is the ticket service surface used by the handler.
type TicketOperations interface {
	CreateTicket(ctx context.Context, userID string, input service.TicketCreateInput) (*domain.Ticket, error)
	ListTickets(ctx context.Context, userID string, role domain.Role, limit, offset int) ([]domain.Ticket, error)
	GetTicket(ctx context.Context, userID string, role domain.Role, ticketID string) (*domain.Ticket, error)
}

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets TicketOperations
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketOperations) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewAuthenticationFailed(nil)
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), principal.ID, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewAuthenticationFailed(nil)
	}
	limit, offset := pagination(c)
	tickets, err := h.tickets.ListTickets(c.UserContext(), principal.ID, principal.Role, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewAuthenticationFailed(nil)
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), principal.ID, principal.Role, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	return pageSize, (page - 1) * pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
