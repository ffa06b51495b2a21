package dto

import (
	"time"

	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/service"
)

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Message     string              `json:"message"`
	IsInternal  bool                `json:"isInternal"`
	Attachments []AttachmentRequest `json:"attachments"`
}

// ToInput converts the payload for the message service.
func (r CreateMessageRequest) ToInput() service.AddMessageInput {
	return service.AddMessageInput{
		Message:     r.Message,
		IsInternal:  r.IsInternal,
		Attachments: attachmentInputs(r.Attachments),
	}
}

// UpdateMessageRequest payload.
type UpdateMessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse is the wire form of a thread message.
type MessageResponse struct {
	ID              string              `json:"id"`
	Ticket          string              `json:"ticket"`
	Sender          *SenderResponse     `json:"sender"`
	Message         string              `json:"message"`
	Attachments     []domain.Attachment `json:"attachments"`
	IsInternal      bool                `json:"isInternal"`
	IsSystemMessage bool                `json:"isSystemMessage"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// SenderResponse is the reduced profile attached to messages.
type SenderResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name,omitempty"`
	Email      string      `json:"email,omitempty"`
	Role       domain.Role `json:"role,omitempty"`
	Department string      `json:"department,omitempty"`
}

// NewMessageResponse converts a message view.
func NewMessageResponse(view service.MessageView) MessageResponse {
	m := view.Message
	sender := &SenderResponse{ID: m.SenderID}
	if p := view.Sender; p != nil {
		sender = &SenderResponse{ID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role, Department: p.Department}
	}
	return MessageResponse{
		ID:              m.ID,
		Ticket:          m.TicketID,
		Sender:          sender,
		Message:         m.Body,
		Attachments:     nonNil(m.Attachments),
		IsInternal:      m.IsInternal,
		IsSystemMessage: m.IsSystemMessage,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// NewMessageResponses converts a thread.
func NewMessageResponses(views []service.MessageView) []MessageResponse {
	out := make([]MessageResponse, 0, len(views))
	for _, v := range views {
		out = append(out, NewMessageResponse(v))
	}
	return out
}
