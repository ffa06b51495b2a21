package service

import (
	"context"
	"errors"

	"github.com/spec-kit/uniticket/internal/clock"
	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/repository"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

// TicketView is a ticket with its creator and assignee expanded.
type TicketView struct {
	Ticket    domain.Ticket
	Creator   *domain.UserProfile
	Assignee  *domain.UserProfile
	AgeInDays int
}

// MessageView is a message with its sender expanded.
type MessageView struct {
	Message domain.Message
	Sender  *domain.UserProfile
}

// TicketDetail is a ticket view plus its visible thread.
type TicketDetail struct {
	TicketView
	Messages []MessageView
}

// TicketPage is one page of a ticket listing.
type TicketPage struct {
	Items []TicketView
	Total int
	Page  int
	Pages int
	Limit int
}

// profileResolver batches user lookups for expansion.
type profileResolver struct {
	users repository.UserRepository
	clock clock.Clock
}

func (r profileResolver) lookup(ctx context.Context, ids []string) (map[string]*domain.UserProfile, error) {
	wanted := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		wanted = append(wanted, id)
	}
	out := make(map[string]*domain.UserProfile, len(wanted))
	if len(wanted) == 0 {
		return out, nil
	}
	users, err := r.users.ListByIDs(ctx, wanted)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for i := range users {
		profile := users[i].Profile()
		out[users[i].ID] = &profile
	}
	return out, nil
}

func (r profileResolver) ticketViews(ctx context.Context, tickets []domain.Ticket) ([]TicketView, error) {
	ids := make([]string, 0, len(tickets)*2)
	for i := range tickets {
		ids = append(ids, tickets[i].CreatedBy)
		if tickets[i].AssignedTo != nil {
			ids = append(ids, *tickets[i].AssignedTo)
		}
	}
	profiles, err := r.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	views := make([]TicketView, 0, len(tickets))
	for _, ticket := range tickets {
		view := TicketView{
			Ticket:    ticket,
			Creator:   profiles[ticket.CreatedBy],
			AgeInDays: ticket.AgeInDays(now),
		}
		if ticket.AssignedTo != nil {
			view.Assignee = profiles[*ticket.AssignedTo]
		}
		views = append(views, view)
	}
	return views, nil
}

func (r profileResolver) ticketView(ctx context.Context, ticket *domain.Ticket) (*TicketView, error) {
	views, err := r.ticketViews(ctx, []domain.Ticket{*ticket})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r profileResolver) messageViews(ctx context.Context, messages []domain.Message) ([]MessageView, error) {
	ids := make([]string, 0, len(messages))
	for i := range messages {
		ids = append(ids, messages[i].SenderID)
	}
	profiles, err := r.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, MessageView{Message: msg, Sender: profiles[msg.SenderID]})
	}
	return views, nil
}

func (r profileResolver) messageView(ctx context.Context, msg *domain.Message) (*MessageView, error) {
	views, err := r.messageViews(ctx, []domain.Message{*msg})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// storeError maps repository failures onto the error taxonomy.
func storeError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, nil)
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return apperrors.NewInternalError(err)
}
