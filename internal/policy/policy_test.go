package policy

import (
	"testing"

	"github.com/spec-kit/uniticket/internal/domain"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

func strPtr(s string) *string { return &s }

var (
	creator  = Actor{ID: "student-1", Role: domain.RoleStudent}
	stranger = Actor{ID: "student-2", Role: domain.RoleStudent}
	staff    = Actor{ID: "staff-1", Role: domain.RoleStaff}
	admin    = Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

func TestCanAccessTicket(t *testing.T) {
	ticket := &domain.Ticket{CreatedBy: creator.ID}
	assignedToStudent := &domain.Ticket{CreatedBy: creator.ID, AssignedTo: strPtr(stranger.ID)}

	tests := []struct {
		name   string
		actor  Actor
		ticket *domain.Ticket
		want   bool
	}{
		{"creator", creator, ticket, true},
		{"other student", stranger, ticket, false},
		{"assignee student", stranger, assignedToStudent, true},
		{"staff", staff, ticket, true},
		{"admin", admin, ticket, true},
		{"anonymous", Actor{Role: domain.RoleAdmin}, ticket, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanAccessTicket(tt.actor, tt.ticket)
			if got := err == nil; got != tt.want {
				t.Errorf("CanAccessTicket allowed = %v, want %v (err=%v)", got, tt.want, err)
			}
			if err != nil && !apperrors.IsForbidden(err) {
				t.Errorf("error = %v, want FORBIDDEN", err)
			}
		})
	}
}

// The single-ticket fetch is narrower than the thread predicate: a student
// assignee that did not create the ticket is denied.
func TestCanViewTicketDetailIsOwnershipOnlyForStudents(t *testing.T) {
	ticket := &domain.Ticket{CreatedBy: creator.ID, AssignedTo: strPtr(stranger.ID)}

	if err := CanViewTicketDetail(stranger, ticket); !apperrors.IsForbidden(err) {
		t.Errorf("student assignee: err = %v, want FORBIDDEN", err)
	}
	if err := CanAccessTicket(stranger, ticket); err != nil {
		t.Errorf("student assignee thread access: err = %v, want nil", err)
	}
	for _, actor := range []Actor{creator, staff, admin} {
		if err := CanViewTicketDetail(actor, ticket); err != nil {
			t.Errorf("CanViewTicketDetail(%s) = %v, want nil", actor.ID, err)
		}
	}
}

func TestCanEditTicket(t *testing.T) {
	ticket := &domain.Ticket{CreatedBy: creator.ID}
	if err := CanEditTicket(creator, ticket); err != nil {
		t.Errorf("creator: %v", err)
	}
	if err := CanEditTicket(stranger, ticket); !apperrors.IsForbidden(err) {
		t.Errorf("stranger: err = %v, want FORBIDDEN", err)
	}
	if err := CanEditTicket(staff, ticket); err != nil {
		t.Errorf("staff: %v", err)
	}
}

func TestRoleOnlyPredicates(t *testing.T) {
	tests := []struct {
		name  string
		check func(Actor) error
		allow map[domain.Role]bool
	}{
		{"delete", CanDeleteTicket, map[domain.Role]bool{domain.RoleAdmin: true}},
		{"audit", CanAudit, map[domain.Role]bool{domain.RoleAdmin: true}},
		{"assign", CanAssignTicket, map[domain.Role]bool{domain.RoleStaff: true, domain.RoleAdmin: true}},
		{"internal", CanPostInternal, map[domain.Role]bool{domain.RoleStaff: true, domain.RoleAdmin: true}},
	}
	for _, tt := range tests {
		for _, actor := range []Actor{creator, staff, admin} {
			err := tt.check(actor)
			if got := err == nil; got != tt.allow[actor.Role] {
				t.Errorf("%s as %s: allowed = %v, want %v", tt.name, actor.Role, got, tt.allow[actor.Role])
			}
		}
	}
}

func TestCanModifyMessage(t *testing.T) {
	own := &domain.Message{SenderID: creator.ID}
	system := &domain.Message{SenderID: admin.ID, IsSystemMessage: true}

	if err := CanModifyMessage(creator, own); err != nil {
		t.Errorf("sender: %v", err)
	}
	if err := CanModifyMessage(admin, own); err != nil {
		t.Errorf("admin: %v", err)
	}
	if err := CanModifyMessage(staff, own); !apperrors.IsForbidden(err) {
		t.Errorf("staff non-sender: err = %v, want FORBIDDEN", err)
	}
	for _, actor := range []Actor{creator, staff, admin} {
		if err := CanModifyMessage(actor, system); !apperrors.IsForbidden(err) {
			t.Errorf("system message as %s: err = %v, want FORBIDDEN", actor.Role, err)
		}
	}
}

func TestListScope(t *testing.T) {
	own := &domain.Ticket{CreatedBy: creator.ID}
	unassigned := &domain.Ticket{CreatedBy: stranger.ID}
	mine := &domain.Ticket{CreatedBy: stranger.ID, AssignedTo: strPtr(staff.ID)}
	others := &domain.Ticket{CreatedBy: stranger.ID, AssignedTo: strPtr("staff-2")}

	tests := []struct {
		actor  Actor
		ticket *domain.Ticket
		want   bool
	}{
		{creator, own, true},
		{creator, unassigned, false},
		{staff, unassigned, true},
		{staff, mine, true},
		{staff, others, false},
		{admin, others, true},
	}
	for _, tt := range tests {
		if got := ListScope(tt.actor).Matches(tt.ticket); got != tt.want {
			t.Errorf("ListScope(%s).Matches(%+v) = %v, want %v", tt.actor.ID, tt.ticket, got, tt.want)
		}
	}
}

func TestStatsScope(t *testing.T) {
	if _, err := StatsScope(creator); !apperrors.IsForbidden(err) {
		t.Errorf("student stats: err = %v, want FORBIDDEN", err)
	}
	scope, err := StatsScope(staff)
	if err != nil || scope.AssignedTo != staff.ID || scope.IncludeUnassigned {
		t.Errorf("staff stats scope = %+v, %v", scope, err)
	}
	scope, err = StatsScope(admin)
	if err != nil || scope != (domain.TicketScope{}) {
		t.Errorf("admin stats scope = %+v, %v", scope, err)
	}
}
