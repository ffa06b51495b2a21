package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/uniticket/internal/api/dto"
	"github.com/spec-kit/uniticket/internal/service"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.service.CreateTicket(c.UserContext(), actor, req.ToInput())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK("Ticket created successfully", dto.NewTicketResponse(*view)))
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	input, err := parseListQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.JSON(dto.ListEnvelope{
		Success: true,
		Count:   page.Total,
		Page:    page.Page,
		Pages:   page.Pages,
		Limit:   page.Limit,
		Data:    dto.NewTicketResponses(page.Items),
	})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.NewTicketDetailResponse(detail)))
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.service.UpdateTicket(c.UserContext(), actor, c.Params("id"), req.ToInput())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Ticket updated successfully", dto.NewTicketResponse(*view)))
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.OK("Ticket deleted successfully", nil))
}

// Stats GET /api/tickets/stats/overview.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	stats, err := h.service.TicketStats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.NewTicketStatsResponse(stats)))
}

// AuditTicket GET /api/admin/tickets/:id/audit.
func (h *TicketsHandler) AuditTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	detail, err := h.service.AuditTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.NewTicketDetailResponse(detail)))
}

func parseListQuery(c *fiber.Ctx) (service.ListTicketsInput, error) {
	input := service.ListTicketsInput{
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		Category:   c.Query("category"),
		Department: c.Query("department"),
		AssignedTo: c.Query("assignedTo"),
		CreatedBy:  c.Query("createdBy"),
		Search:     c.Query("search"),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	}
	var fields []apperrors.FieldError
	for _, param := range []struct {
		name string
		dst  *int
	}{{"page", &input.Page}, {"limit", &input.Limit}} {
		name, dst := param.name, param.dst
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, apperrors.FieldError{Field: name, Message: "must be an integer"})
			continue
		}
		*dst = n
	}
	if len(fields) > 0 {
		return input, apperrors.NewFieldValidationError(fields)
	}
	return input, nil
}
