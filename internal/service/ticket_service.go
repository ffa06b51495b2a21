package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/uniticket/internal/clock"
	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/events"
	"github.com/spec-kit/uniticket/internal/policy"
	"github.com/spec-kit/uniticket/internal/repository"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	changeAssigned   = "Ticket Assigned to staff member"
	changeUnassigned = "Ticket Unassigned from staff member"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	profiles   profileResolver
	users      repository.UserRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
}

// AttachmentInput describes file metadata supplied by the client.
type AttachmentInput struct {
	Filename string `json:"filename" validate:"required,max=255"`
	URL      string `json:"url" validate:"required,url"`
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title       string                `json:"title" validate:"required,max=200"`
	Description string                `json:"description" validate:"required,max=2000"`
	Category    domain.TicketCategory `json:"category" validate:"required,ticket_category"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,ticket_priority"`
	Department  string                `json:"department" validate:"max=100"`
	Location    string                `json:"location" validate:"max=100"`
	DueDate     string                `json:"dueDate" validate:"omitempty,iso8601"`
	Tags        []string              `json:"tags" validate:"max=20,dive,max=50"`
	Attachments []AttachmentInput     `json:"attachments" validate:"max=10,dive"`
}

// OptionalID carries a field that may be absent, cleared or set. Set is
// false when the client omitted the field; an empty ID with Set means clear.
type OptionalID struct {
	Set bool
	ID  string
}

// UpdateTicketInput holds the fields a caller asked to change. Nil pointers
// and nil slices mean "leave as is".
type UpdateTicketInput struct {
	Status      *domain.TicketStatus   `json:"status" validate:"omitempty,ticket_status"`
	Priority    *domain.TicketPriority `json:"priority" validate:"omitempty,ticket_priority"`
	Category    *domain.TicketCategory `json:"category" validate:"omitempty,ticket_category"`
	AssignedTo  OptionalID             `json:"assignedTo"`
	Resolution  *string                `json:"resolution" validate:"omitempty,max=2000"`
	Department  *string                `json:"department" validate:"omitempty,max=100"`
	Location    *string                `json:"location" validate:"omitempty,max=100"`
	DueDate     *string                `json:"dueDate" validate:"omitempty,iso8601"`
	Tags        []string               `json:"tags" validate:"max=20,dive,max=50"`
	Attachments []AttachmentInput      `json:"attachments" validate:"max=10,dive"`
}

// ListTicketsInput captures listing query parameters.
type ListTicketsInput struct {
	Status     string `json:"status" validate:"omitempty,ticket_status"`
	Priority   string `json:"priority" validate:"omitempty,ticket_priority"`
	Category   string `json:"category" validate:"omitempty,ticket_category"`
	Department string `json:"department" validate:"max=100"`
	AssignedTo string `json:"assignedTo"`
	CreatedBy  string `json:"createdBy"`
	Search     string `json:"search" validate:"max=200"`
	SortBy     string `json:"sortBy" validate:"omitempty,oneof=createdAt updatedAt priority status category title dueDate"`
	SortOrder  string `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page       int    `json:"page" validate:"gte=0"`
	Limit      int    `json:"limit" validate:"gte=0,lte=100"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		users:      deps.UserRepo,
		profiles:   profileResolver{users: deps.UserRepo, clock: clk},
		dispatcher: deps.Dispatcher,
		clock:      clk,
		logger:     nopIfNil(deps.Logger),
	}
}

// CreateTicket opens a ticket on behalf of actor and records the
// "Ticket created" system message.
func (s *TicketService) CreateTicket(ctx context.Context, actor policy.Actor, input CreateTicketInput) (*TicketView, error) {
	if actor.ID == "" {
		return nil, apperrors.NewUnauthorized("Not authorized")
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Department = strings.TrimSpace(input.Department)
	input.Location = strings.TrimSpace(input.Location)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      domain.TicketStatusOpen,
		Department:  input.Department,
		Location:    input.Location,
		Tags:        cleanTags(input.Tags),
		Attachments: s.attachments(input.Attachments),
		CreatedBy:   actor.ID,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if input.DueDate != "" {
		due, _ := parseISO8601(input.DueDate)
		ticket.DueDate = &due
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, storeError(err, "Ticket")
	}
	if err := s.systemMessage(ctx, ticket.ID, actor.ID, domain.SystemMessageTicketCreated); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.EventTicketCreated, ticket.ID, actor, events.TicketCreatedPayload{
		Title:    ticket.Title,
		Category: ticket.Category,
		Priority: ticket.Priority,
	})
	return s.profiles.ticketView(ctx, ticket)
}

// GetTicket returns a ticket with its thread. Students only receive
// tickets they created and never see internal notes.
func (s *TicketService) GetTicket(ctx context.Context, actor policy.Actor, ticketID string) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "Ticket")
	}
	if err := policy.CanViewTicketDetail(actor, ticket); err != nil {
		return nil, err
	}
	return s.detail(ctx, ticket, policy.CanSeeInternal(actor))
}

// AuditTicket is the admin view of a ticket that also resolves soft-deleted
// tickets and always includes internal notes.
func (s *TicketService) AuditTicket(ctx context.Context, actor policy.Actor, ticketID string) (*TicketDetail, error) {
	if err := policy.CanAudit(actor); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByIDIncludingDeleted(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "Ticket")
	}
	return s.detail(ctx, ticket, true)
}

func (s *TicketService) detail(ctx context.Context, ticket *domain.Ticket, includeInternal bool) (*TicketDetail, error) {
	view, err := s.profiles.ticketView(ctx, ticket)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID, includeInternal)
	if err != nil {
		return nil, storeError(err, "Messages")
	}
	thread, err := s.profiles.messageViews(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return &TicketDetail{TicketView: *view, Messages: thread}, nil
}

// ListTickets returns one page of the tickets visible to actor. The role
// scope is always ANDed with the caller's filters and search.
func (s *TicketService) ListTickets(ctx context.Context, actor policy.Actor, input ListTicketsInput) (*TicketPage, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := repository.TicketFilter{
		Scope:      policy.ListScope(actor),
		SearchTerm: strings.TrimSpace(input.Search),
		SortBy:     repository.TicketSortField(input.SortBy),
		SortDesc:   input.SortOrder != "asc",
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}
	if input.Status != "" {
		status := domain.TicketStatus(input.Status)
		filter.Status = &status
	}
	if input.Priority != "" {
		priority := domain.TicketPriority(input.Priority)
		filter.Priority = &priority
	}
	if input.Category != "" {
		category := domain.TicketCategory(input.Category)
		filter.Category = &category
	}
	if dept := strings.TrimSpace(input.Department); dept != "" {
		filter.Department = &dept
	}
	if input.AssignedTo != "" {
		assignee := input.AssignedTo
		filter.AssignedTo = &assignee
	}
	if input.CreatedBy != "" {
		creator := input.CreatedBy
		filter.CreatedBy = &creator
	}

	tickets, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "Tickets")
	}
	views, err := s.profiles.ticketViews(ctx, tickets)
	if err != nil {
		return nil, err
	}
	return &TicketPage{
		Items: views,
		Total: total,
		Page:  page,
		Pages: (total + limit - 1) / limit,
		Limit: limit,
	}, nil
}

// UpdateTicket applies the fields present in input. Status, priority and
// assignee changes are summarised in one system message.
func (s *TicketService) UpdateTicket(ctx context.Context, actor policy.Actor, ticketID string, input UpdateTicketInput) (*TicketView, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "Ticket")
	}
	if err := policy.CanEditTicket(actor, ticket); err != nil {
		return nil, err
	}

	var changes []string
	if input.Status != nil && *input.Status != ticket.Status {
		changes = append(changes, fmt.Sprintf("Status changed from %s to %s", ticket.Status, *input.Status))
		ticket.Status = *input.Status
	}
	if input.Priority != nil && *input.Priority != ticket.Priority {
		changes = append(changes, fmt.Sprintf("Priority changed from %s to %s", ticket.Priority, *input.Priority))
		ticket.Priority = *input.Priority
	}
	if input.AssignedTo.Set {
		assigneeID := strings.TrimSpace(input.AssignedTo.ID)
		switch {
		case assigneeID == "":
			if ticket.AssignedTo != nil {
				if err := policy.CanAssignTicket(actor); err != nil {
					return nil, err
				}
				changes = append(changes, changeUnassigned)
				ticket.AssignedTo = nil
			}
		case !ticket.IsAssignedTo(assigneeID):
			if err := policy.CanAssignTicket(actor); err != nil {
				return nil, err
			}
			if err := s.checkAssignee(ctx, assigneeID); err != nil {
				return nil, err
			}
			changes = append(changes, changeAssigned)
			ticket.AssignedTo = &assigneeID
		}
	}
	if input.Resolution != nil {
		ticket.Resolution = strings.TrimSpace(*input.Resolution)
	}
	if input.Category != nil {
		ticket.Category = *input.Category
	}
	if input.Department != nil {
		ticket.Department = strings.TrimSpace(*input.Department)
	}
	if input.Location != nil {
		ticket.Location = strings.TrimSpace(*input.Location)
	}
	if input.DueDate != nil {
		if *input.DueDate == "" {
			ticket.DueDate = nil
		} else {
			due, _ := parseISO8601(*input.DueDate)
			ticket.DueDate = &due
		}
	}
	if input.Tags != nil {
		ticket.Tags = cleanTags(input.Tags)
	}
	if input.Attachments != nil {
		ticket.Attachments = s.attachments(input.Attachments)
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, storeError(err, "Ticket")
	}
	if len(changes) > 0 {
		if err := s.systemMessage(ctx, ticket.ID, actor.ID, strings.Join(changes, ". ")); err != nil {
			return nil, err
		}
	}

	s.publishEvent(ctx, events.EventTicketUpdated, ticket.ID, actor, events.TicketUpdatedPayload{
		Changes:    changes,
		Status:     ticket.Status,
		Priority:   ticket.Priority,
		AssignedTo: ticket.AssignedTo,
	})
	return s.profiles.ticketView(ctx, ticket)
}

// DeleteTicket soft-deletes a ticket. Its messages are left in place and
// stay reachable through AuditTicket.
func (s *TicketService) DeleteTicket(ctx context.Context, actor policy.Actor, ticketID string) error {
	if err := policy.CanDeleteTicket(actor); err != nil {
		return err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return storeError(err, "Ticket")
	}
	if err := s.tickets.SoftDelete(ctx, ticket.ID); err != nil {
		return storeError(err, "Ticket")
	}
	s.publishEvent(ctx, events.EventTicketDeleted, ticket.ID, actor, events.TicketDeletedPayload{Title: ticket.Title})
	return nil
}

// TicketStats aggregates the tickets in the actor's stats scope.
func (s *TicketService) TicketStats(ctx context.Context, actor policy.Actor) (*domain.TicketStats, error) {
	scope, err := policy.StatsScope(actor)
	if err != nil {
		return nil, err
	}
	stats, err := s.tickets.Stats(ctx, scope)
	if err != nil {
		return nil, storeError(err, "Tickets")
	}
	return stats, nil
}

func (s *TicketService) checkAssignee(ctx context.Context, assigneeID string) error {
	user, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if apperrors.IsNotFound(storeError(err, "User")) {
			return singleFieldError("assignedTo", "Assignee must be an active staff member")
		}
		return storeError(err, "User")
	}
	if !user.Active || !user.Role.IsStaffOrAdmin() {
		return singleFieldError("assignedTo", "Assignee must be an active staff member")
	}
	return nil
}

func (s *TicketService) systemMessage(ctx context.Context, ticketID, senderID, body string) error {
	msg := &domain.Message{
		TicketID:        ticketID,
		SenderID:        senderID,
		Body:            body,
		IsSystemMessage: true,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *TicketService) attachments(inputs []AttachmentInput) []domain.Attachment {
	return toAttachments(inputs, s.clock)
}

func (s *TicketService) publishEvent(ctx context.Context, eventType events.EventType, ticketID string, actor policy.Actor, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.New(eventType, ticketID, events.Actor{ID: actor.ID, Role: actor.Role}, s.clock.Now(), payload)
	publish(ctx, s.dispatcher, s.logger, event)
}

// publish hands event to the dispatcher. The operation has already been
// persisted, so a dispatch failure is logged and not returned.
func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func toAttachments(inputs []AttachmentInput, clk clock.Clock) []domain.Attachment {
	out := make([]domain.Attachment, 0, len(inputs))
	now := clk.Now()
	for _, in := range inputs {
		out = append(out, domain.Attachment{
			Filename:   strings.TrimSpace(in.Filename),
			URL:        strings.TrimSpace(in.URL),
			UploadedAt: now,
		})
	}
	return out
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
