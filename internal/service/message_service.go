package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/uniticket/internal/clock"
	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/events"
	"github.com/spec-kit/uniticket/internal/policy"
	"github.com/spec-kit/uniticket/internal/repository"
)

// MessageService coordinates ticket thread workflows.
type MessageService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	profiles   profileResolver
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// MessageDependencies bundles repositories for the message service.
type MessageDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
}

// AddMessageInput describes a new thread entry.
type AddMessageInput struct {
	Message     string            `json:"message" validate:"required,max=2000"`
	IsInternal  bool              `json:"isInternal"`
	Attachments []AttachmentInput `json:"attachments" validate:"max=10,dive"`
}

// UpdateMessageInput replaces a message's text.
type UpdateMessageInput struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// MessageList is a ticket thread as seen by one actor.
type MessageList struct {
	Items []MessageView
	Count int
}

// NewMessageService constructs the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &MessageService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		profiles:   profileResolver{users: deps.UserRepo, clock: clk},
		dispatcher: deps.Dispatcher,
		clock:      clk,
		logger:     nopIfNil(deps.Logger),
	}
}

// AddMessage appends a message to a ticket thread and bumps the ticket's
// updatedAt. Students cannot post internal notes.
func (s *MessageService) AddMessage(ctx context.Context, actor policy.Actor, ticketID string, input AddMessageInput) (*MessageView, error) {
	input.Message = strings.TrimSpace(input.Message)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "Ticket")
	}
	if err := policy.CanAccessTicket(actor, ticket); err != nil {
		return nil, err
	}
	if input.IsInternal {
		if err := policy.CanPostInternal(actor); err != nil {
			return nil, err
		}
	}

	msg := &domain.Message{
		TicketID:    ticket.ID,
		SenderID:    actor.ID,
		Body:        input.Message,
		Attachments: toAttachments(input.Attachments, s.clock),
		IsInternal:  input.IsInternal,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, storeError(err, "Message")
	}
	if err := s.tickets.Touch(ctx, ticket.ID); err != nil {
		return nil, storeError(err, "Ticket")
	}

	if s.dispatcher != nil {
		publish(ctx, s.dispatcher, s.logger, events.New(events.EventMessageAdded, ticket.ID,
			events.Actor{ID: actor.ID, Role: actor.Role}, s.clock.Now(),
			events.MessageAddedPayload{
				MessageID:   msg.ID,
				SenderID:    msg.SenderID,
				IsInternal:  msg.IsInternal,
				BodyPreview: events.Preview(msg.Body),
			}))
	}
	return s.profiles.messageView(ctx, msg)
}

// ListMessages returns a ticket's thread in chronological order.
func (s *MessageService) ListMessages(ctx context.Context, actor policy.Actor, ticketID string) (*MessageList, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "Ticket")
	}
	if err := policy.CanAccessTicket(actor, ticket); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID, policy.CanSeeInternal(actor))
	if err != nil {
		return nil, storeError(err, "Messages")
	}
	views, err := s.profiles.messageViews(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return &MessageList{Items: views, Count: len(views)}, nil
}

// UpdateMessage replaces the text of a message the actor may modify.
func (s *MessageService) UpdateMessage(ctx context.Context, actor policy.Actor, messageID string, input UpdateMessageInput) (*MessageView, error) {
	input.Message = strings.TrimSpace(input.Message)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, storeError(err, "Message")
	}
	if err := policy.CanModifyMessage(actor, msg); err != nil {
		return nil, err
	}
	msg.Body = input.Message
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, storeError(err, "Message")
	}
	return s.profiles.messageView(ctx, msg)
}

// DeleteMessage removes a message the actor may modify.
func (s *MessageService) DeleteMessage(ctx context.Context, actor policy.Actor, messageID string) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return storeError(err, "Message")
	}
	if err := policy.CanModifyMessage(actor, msg); err != nil {
		return err
	}
	return storeError(s.messages.Delete(ctx, msg.ID), "Message")
}
