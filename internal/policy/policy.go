// Package policy holds the authorization rules shared by the ticket and
// message engines. Every predicate returns nil when the actor is allowed and
// a FORBIDDEN domain error otherwise, so callers can return it unchanged.
package policy

import (
	"github.com/spec-kit/uniticket/internal/domain"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role domain.Role
}

// ActorFromUser builds an Actor from an identity record.
func ActorFromUser(user *domain.User) Actor {
	return Actor{ID: user.ID, Role: user.Role}
}

func (a Actor) IsStudent() bool { return a.Role == domain.RoleStudent }
func (a Actor) IsAdmin() bool   { return a.Role == domain.RoleAdmin }

func denied() error {
	return apperrors.NewForbidden("Access denied")
}

// IsAuthorized is the thread predicate: the actor created the ticket, is its
// current assignee, or works on the helpdesk side.
func IsAuthorized(actor Actor, ticket *domain.Ticket) bool {
	if actor.ID == "" {
		return false
	}
	return ticket.CreatedBy == actor.ID ||
		ticket.IsAssignedTo(actor.ID) ||
		actor.Role.IsStaffOrAdmin()
}

// CanAccessTicket gates reading and posting to a ticket's thread.
func CanAccessTicket(actor Actor, ticket *domain.Ticket) error {
	if !IsAuthorized(actor, ticket) {
		return denied()
	}
	return nil
}

// CanViewTicketDetail gates the single-ticket fetch. Students must own the
// ticket; being its assignee is not enough on this path.
func CanViewTicketDetail(actor Actor, ticket *domain.Ticket) error {
	if actor.IsStudent() && ticket.CreatedBy != actor.ID {
		return denied()
	}
	if actor.ID == "" {
		return denied()
	}
	return nil
}

// CanEditTicket gates ticket field updates.
func CanEditTicket(actor Actor, ticket *domain.Ticket) error {
	return CanViewTicketDetail(actor, ticket)
}

// CanAssignTicket gates changes to a ticket's assignee.
func CanAssignTicket(actor Actor) error {
	if !actor.Role.IsStaffOrAdmin() {
		return apperrors.NewForbidden("Only staff can assign tickets")
	}
	return nil
}

// CanDeleteTicket gates soft deletion.
func CanDeleteTicket(actor Actor) error {
	if !actor.IsAdmin() {
		return denied()
	}
	return nil
}

// CanAudit gates the admin audit path that still resolves deleted tickets.
func CanAudit(actor Actor) error {
	return CanDeleteTicket(actor)
}

// CanPostInternal gates internal notes.
func CanPostInternal(actor Actor) error {
	if !actor.Role.IsStaffOrAdmin() {
		return apperrors.NewForbidden("Students cannot send internal messages")
	}
	return nil
}

// CanSeeInternal reports whether internal notes are visible to the actor.
func CanSeeInternal(actor Actor) bool {
	return actor.Role.IsStaffOrAdmin()
}

// CanModifyMessage gates edits and deletes. System messages are immutable
// for every actor, admins included.
func CanModifyMessage(actor Actor, message *domain.Message) error {
	if message.IsSystemMessage {
		return apperrors.NewForbidden("System messages cannot be modified")
	}
	if message.SenderID != actor.ID && !actor.IsAdmin() {
		return denied()
	}
	return nil
}

// ListScope returns the default visibility filter for ticket listings.
func ListScope(actor Actor) domain.TicketScope {
	switch actor.Role {
	case domain.RoleStudent:
		return domain.TicketScope{CreatedBy: actor.ID}
	case domain.RoleStaff:
		return domain.TicketScope{AssignedTo: actor.ID, IncludeUnassigned: true}
	case domain.RoleAdmin:
		return domain.TicketScope{}
	}
	// Unknown roles see nothing they did not create.
	return domain.TicketScope{CreatedBy: actor.ID}
}

// StatsScope returns the filter for aggregate statistics.
func StatsScope(actor Actor) (domain.TicketScope, error) {
	switch actor.Role {
	case domain.RoleStaff:
		return domain.TicketScope{AssignedTo: actor.ID}, nil
	case domain.RoleAdmin:
		return domain.TicketScope{}, nil
	}
	return domain.TicketScope{}, denied()
}
