package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/uniticket/internal/api/dto"
	"github.com/spec-kit/uniticket/internal/service"
)

// MessagesHandler manages ticket thread endpoints.
type MessagesHandler struct {
	service *service.MessageService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messageService *service.MessageService) *MessagesHandler {
	return &MessagesHandler{service: messageService}
}

// AddMessage POST /api/tickets/:id/messages.
func (h *MessagesHandler) AddMessage(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.service.AddMessage(c.UserContext(), actor, c.Params("id"), req.ToInput())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK("Message added successfully", dto.NewMessageResponse(*view)))
}

// ListMessages GET /api/tickets/:id/messages.
func (h *MessagesHandler) ListMessages(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	list, err := h.service.ListMessages(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.ListEnvelope{
		Success: true,
		Count:   list.Count,
		Data:    dto.NewMessageResponses(list.Items),
	})
}

// UpdateMessage PUT /api/messages/:id.
func (h *MessagesHandler) UpdateMessage(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.service.UpdateMessage(c.UserContext(), actor, c.Params("id"), service.UpdateMessageInput{Message: req.Message})
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Message updated successfully", dto.NewMessageResponse(*view)))
}

// DeleteMessage DELETE /api/messages/:id.
func (h *MessagesHandler) DeleteMessage(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteMessage(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.OK("Message deleted successfully", nil))
}
