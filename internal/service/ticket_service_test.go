package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/events"
	"github.com/spec-kit/uniticket/internal/repository"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

func TestCreateTicketDefaultsAndSystemMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.tickets.CreateTicket(ctx, f.student, CreateTicketInput{
		Title:       "  Projector broken ",
		Description: "No display output",
		Category:    domain.CategoryITSupport,
		DueDate:     "2024-09-10",
		Tags:        []string{"av", " ", "room-12"},
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	ticket := view.Ticket
	if ticket.Status != domain.TicketStatusOpen || ticket.Priority != domain.TicketPriorityMedium {
		t.Errorf("status/priority = %s/%s, want Open/Medium", ticket.Status, ticket.Priority)
	}
	if ticket.Title != "Projector broken" {
		t.Errorf("title not trimmed: %q", ticket.Title)
	}
	if len(ticket.Tags) != 2 {
		t.Errorf("tags = %v", ticket.Tags)
	}
	if ticket.DueDate == nil || !ticket.DueDate.Equal(time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("dueDate = %v", ticket.DueDate)
	}
	if view.Creator == nil || view.Creator.ID != f.student.ID {
		t.Errorf("creator not expanded: %+v", view.Creator)
	}
	if ticket.ResolvedAt != nil || ticket.ClosedAt != nil || ticket.IsDeleted {
		t.Errorf("lifecycle fields set on create: %+v", ticket)
	}

	msgs := f.thread(t, ticket.ID)
	if len(msgs) != 1 || !msgs[0].IsSystemMessage || msgs[0].Body != domain.SystemMessageTicketCreated {
		t.Fatalf("thread = %+v, want one system message", msgs)
	}
	if msgs[0].SenderID != f.student.ID {
		t.Errorf("system message sender = %s", msgs[0].SenderID)
	}
	if types := f.events.Types(); len(types) != 1 || types[0] != events.EventTicketCreated {
		t.Errorf("events = %v", types)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name  string
		input CreateTicketInput
		field string
	}{
		{"missing title", CreateTicketInput{Description: "d", Category: domain.CategoryLibrary}, "title"},
		{"blank title", CreateTicketInput{Title: "   ", Description: "d", Category: domain.CategoryLibrary}, "title"},
		{"long title", CreateTicketInput{Title: string(long), Description: "d", Category: domain.CategoryLibrary}, "title"},
		{"bad category", CreateTicketInput{Title: "t", Description: "d", Category: "Parking"}, "category"},
		{"bad priority", CreateTicketInput{Title: "t", Description: "d", Category: domain.CategoryLibrary, Priority: "Urgent"}, "priority"},
		{"bad due date", CreateTicketInput{Title: "t", Description: "d", Category: domain.CategoryLibrary, DueDate: "next week"}, "dueDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tickets.CreateTicket(context.Background(), f.student, tt.input)
			if !apperrors.IsValidation(err) {
				t.Fatalf("err = %v, want VALIDATION_FAILED", err)
			}
			found := false
			for _, fe := range apperrors.ToDomainError(err).Fields {
				found = found || fe.Field == tt.field
			}
			if !found {
				t.Errorf("no field error for %q: %+v", tt.field, apperrors.ToDomainError(err).Fields)
			}
		})
	}
	if _, total, _ := f.store.Tickets().List(context.Background(), repository.TicketFilter{}); total != 0 {
		t.Errorf("invalid input persisted %d tickets", total)
	}
}

func TestResolveScenarioIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTicket(t, f.student, "Projector broken")

	f.clock.Advance(time.Hour)
	resolved, err := f.tickets.UpdateTicket(ctx, f.staff, created.Ticket.ID, UpdateTicketInput{
		Status: statusPtr(domain.TicketStatusResolved),
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Ticket.ResolvedAt == nil {
		t.Fatal("resolvedAt not set")
	}
	stamp := *resolved.Ticket.ResolvedAt
	bodies := systemBodies(f.thread(t, created.Ticket.ID))
	if len(bodies) != 2 || bodies[1] != "Status changed from Open to Resolved" {
		t.Fatalf("system messages = %v", bodies)
	}

	f.clock.Advance(time.Hour)
	again, err := f.tickets.UpdateTicket(ctx, f.staff, created.Ticket.ID, UpdateTicketInput{
		Status: statusPtr(domain.TicketStatusResolved),
	})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if n := len(systemBodies(f.thread(t, created.Ticket.ID))); n != 2 {
		t.Errorf("no-op update added a message: %d system messages", n)
	}
	if !again.Ticket.ResolvedAt.Equal(stamp) {
		t.Errorf("resolvedAt moved from %v to %v", stamp, again.Ticket.ResolvedAt)
	}
}

func TestLifecycleStampsAreSetOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTicket(t, f.student, "Heating").Ticket.ID

	steps := []domain.TicketStatus{
		domain.TicketStatusResolved,
		domain.TicketStatusInProgress,
		domain.TicketStatusClosed,
		domain.TicketStatusOpen,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	}
	var resolvedAt, closedAt *time.Time
	for _, status := range steps {
		f.clock.Advance(time.Minute)
		view, err := f.tickets.UpdateTicket(ctx, f.admin, id, UpdateTicketInput{Status: statusPtr(status)})
		if err != nil {
			t.Fatalf("update to %s: %v", status, err)
		}
		tk := view.Ticket
		if resolvedAt == nil {
			resolvedAt = tk.ResolvedAt
		} else if !tk.ResolvedAt.Equal(*resolvedAt) {
			t.Errorf("resolvedAt changed after %s", status)
		}
		if closedAt == nil {
			closedAt = tk.ClosedAt
		} else if !tk.ClosedAt.Equal(*closedAt) {
			t.Errorf("closedAt changed after %s", status)
		}
	}
	if resolvedAt == nil || closedAt == nil {
		t.Fatalf("stamps missing: resolved=%v closed=%v", resolvedAt, closedAt)
	}
	if !closedAt.After(*resolvedAt) {
		t.Errorf("closedAt %v should follow resolvedAt %v", closedAt, resolvedAt)
	}
}

func TestUpdateDiffMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTicket(t, f.student, "Wifi").Ticket.ID

	_, err := f.tickets.UpdateTicket(ctx, f.staff, id, UpdateTicketInput{
		Status:     statusPtr(domain.TicketStatusInProgress),
		Priority:   priorityPtr(domain.TicketPriorityHigh),
		AssignedTo: OptionalID{Set: true, ID: f.staff.ID},
		Resolution: strPtr("checking access point"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	bodies := systemBodies(f.thread(t, id))
	want := "Status changed from Open to In Progress. Priority changed from Medium to High. Ticket Assigned to staff member"
	if len(bodies) != 2 || bodies[1] != want {
		t.Fatalf("system messages = %q", bodies)
	}

	// Reassigning to the same staff member and editing only free-text
	// fields records nothing.
	_, err = f.tickets.UpdateTicket(ctx, f.staff, id, UpdateTicketInput{
		AssignedTo: OptionalID{Set: true, ID: f.staff.ID},
		Location:   strPtr("Library, floor 2"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := len(systemBodies(f.thread(t, id))); n != 2 {
		t.Errorf("unchanged assignee produced a message (%d)", n)
	}

	view, err := f.tickets.UpdateTicket(ctx, f.staff, id, UpdateTicketInput{AssignedTo: OptionalID{Set: true}})
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if view.Ticket.AssignedTo != nil {
		t.Errorf("still assigned to %v", *view.Ticket.AssignedTo)
	}
	bodies = systemBodies(f.thread(t, id))
	if bodies[len(bodies)-1] != "Ticket Unassigned from staff member" {
		t.Errorf("last system message = %q", bodies[len(bodies)-1])
	}

	if _, err := f.tickets.UpdateTicket(ctx, f.staff, id, UpdateTicketInput{AssignedTo: OptionalID{Set: true}}); err != nil {
		t.Fatalf("second unassign: %v", err)
	}
	if n := len(systemBodies(f.thread(t, id))); n != len(bodies) {
		t.Errorf("unassigning an unassigned ticket produced a message")
	}
}

func TestUpdateAccessRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTicket(t, f.student, "Locker").Ticket.ID

	if _, err := f.tickets.UpdateTicket(ctx, f.student2, id, UpdateTicketInput{Location: strPtr("x")}); !apperrors.IsForbidden(err) {
		t.Errorf("other student: err = %v, want FORBIDDEN", err)
	}
	if _, err := f.tickets.UpdateTicket(ctx, f.student, id, UpdateTicketInput{AssignedTo: OptionalID{Set: true, ID: f.staff.ID}}); !apperrors.IsForbidden(err) {
		t.Errorf("student assigning: err = %v, want FORBIDDEN", err)
	}
	view, err := f.tickets.UpdateTicket(ctx, f.student, id, UpdateTicketInput{
		Priority: priorityPtr(domain.TicketPriorityLow),
		Tags:     []string{"urgent"},
	})
	if err != nil {
		t.Fatalf("creator edit: %v", err)
	}
	if view.Ticket.Priority != domain.TicketPriorityLow || len(view.Ticket.Tags) != 1 {
		t.Errorf("creator edit not applied: %+v", view.Ticket)
	}

	for name, assignee := range map[string]string{
		"student":  f.student2.ID,
		"inactive": f.inactive.ID,
		"unknown":  "00000000-0000-0000-0000-000000000000",
	} {
		if _, err := f.tickets.UpdateTicket(ctx, f.admin, id, UpdateTicketInput{AssignedTo: OptionalID{Set: true, ID: assignee}}); !apperrors.IsValidation(err) {
			t.Errorf("assign to %s: err = %v, want VALIDATION_FAILED", name, err)
		}
	}
	if _, err := f.tickets.UpdateTicket(ctx, f.admin, "missing", UpdateTicketInput{}); !apperrors.IsNotFound(err) {
		t.Errorf("missing ticket: err = %v, want NOT_FOUND", err)
	}
}

func TestGetTicketAccessAndInternalVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTicket(t, f.student, "Exam room").Ticket.ID

	if _, err := f.messages.AddMessage(ctx, f.staff, id, AddMessageInput{Message: "check with registrar", IsInternal: true}); err != nil {
		t.Fatalf("internal note: %v", err)
	}
	if _, err := f.messages.AddMessage(ctx, f.staff, id, AddMessageInput{Message: "we are on it"}); err != nil {
		t.Fatalf("public reply: %v", err)
	}

	if _, err := f.tickets.GetTicket(ctx, f.student2, id); !apperrors.IsForbidden(err) {
		t.Errorf("other student: err = %v, want FORBIDDEN", err)
	}

	detail, err := f.tickets.GetTicket(ctx, f.student, id)
	if err != nil {
		t.Fatalf("creator get: %v", err)
	}
	if len(detail.Messages) != 2 {
		t.Errorf("creator sees %d messages, want 2", len(detail.Messages))
	}
	for _, m := range detail.Messages {
		if m.Message.IsInternal {
			t.Errorf("student received internal message %q", m.Message.Body)
		}
	}

	staffDetail, err := f.tickets.GetTicket(ctx, f.staff2, id)
	if err != nil {
		t.Fatalf("staff get: %v", err)
	}
	if len(staffDetail.Messages) != 3 {
		t.Errorf("staff sees %d messages, want 3", len(staffDetail.Messages))
	}
	if staffDetail.Messages[1].Sender == nil || staffDetail.Messages[1].Sender.ID != f.staff.ID {
		t.Errorf("sender not expanded: %+v", staffDetail.Messages[1])
	}
}

func TestListTicketsScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.createTicket(t, f.student, "Printer jam").Ticket.ID
	f.createTicket(t, f.student, "Printer toner")
	theirs := f.createTicket(t, f.student2, "Printer offline").Ticket.ID
	f.createTicket(t, f.student2, "Broken chair")

	if _, err := f.tickets.UpdateTicket(ctx, f.admin, mine, UpdateTicketInput{AssignedTo: OptionalID{Set: true, ID: f.staff.ID}}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.tickets.UpdateTicket(ctx, f.admin, theirs, UpdateTicketInput{AssignedTo: OptionalID{Set: true, ID: f.staff2.ID}}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	page, err := f.tickets.ListTickets(ctx, f.staff, ListTicketsInput{})
	if err != nil {
		t.Fatalf("staff list: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("staff total = %d, want 3 (own + unassigned)", page.Total)
	}
	for _, item := range page.Items {
		if item.Ticket.AssignedTo != nil && *item.Ticket.AssignedTo != f.staff.ID {
			t.Errorf("staff sees ticket assigned to %s", *item.Ticket.AssignedTo)
		}
	}

	// Search narrows the staff scope instead of replacing it.
	page, err = f.tickets.ListTickets(ctx, f.staff, ListTicketsInput{Search: "printer"})
	if err != nil {
		t.Fatalf("staff search: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("staff search total = %d, want 2", page.Total)
	}

	// A student cannot widen the scope with createdBy.
	page, err = f.tickets.ListTickets(ctx, f.student, ListTicketsInput{CreatedBy: f.student2.ID})
	if err != nil {
		t.Fatalf("student list: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("student createdBy filter leaked %d tickets", page.Total)
	}

	page, err = f.tickets.ListTickets(ctx, f.admin, ListTicketsInput{Limit: 3, Page: 2, SortBy: "title", SortOrder: "asc"})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if page.Total != 4 || page.Pages != 2 || page.Page != 2 || len(page.Items) != 1 {
		t.Errorf("admin page = total %d pages %d page %d items %d", page.Total, page.Pages, page.Page, len(page.Items))
	}
	if page.Items[0].Ticket.Title != "Printer toner" {
		t.Errorf("last title asc = %q", page.Items[0].Ticket.Title)
	}

	if _, err := f.tickets.ListTickets(ctx, f.admin, ListTicketsInput{SortBy: "password"}); !apperrors.IsValidation(err) {
		t.Errorf("unknown sortBy: err = %v, want VALIDATION_FAILED", err)
	}
	if _, err := f.tickets.ListTickets(ctx, f.admin, ListTicketsInput{Limit: 101}); !apperrors.IsValidation(err) {
		t.Errorf("limit 101: err = %v, want VALIDATION_FAILED", err)
	}
}

func TestDeleteAndAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTicket(t, f.student, "Spam").Ticket.ID
	if _, err := f.messages.AddMessage(ctx, f.staff, id, AddMessageInput{Message: "note", IsInternal: true}); err != nil {
		t.Fatalf("note: %v", err)
	}

	for _, actor := range []struct {
		name string
		err  error
	}{
		{"student", f.tickets.DeleteTicket(ctx, f.student, id)},
		{"staff", f.tickets.DeleteTicket(ctx, f.staff, id)},
	} {
		if !apperrors.IsForbidden(actor.err) {
			t.Errorf("%s delete: err = %v, want FORBIDDEN", actor.name, actor.err)
		}
	}
	if err := f.tickets.DeleteTicket(ctx, f.admin, id); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if err := f.tickets.DeleteTicket(ctx, f.admin, id); !apperrors.IsNotFound(err) {
		t.Errorf("second delete: err = %v, want NOT_FOUND", err)
	}
	if _, err := f.tickets.GetTicket(ctx, f.admin, id); !apperrors.IsNotFound(err) {
		t.Errorf("get deleted: err = %v, want NOT_FOUND", err)
	}
	if _, err := f.messages.ListMessages(ctx, f.admin, id); !apperrors.IsNotFound(err) {
		t.Errorf("list messages of deleted: err = %v, want NOT_FOUND", err)
	}

	if _, err := f.tickets.AuditTicket(ctx, f.staff, id); !apperrors.IsForbidden(err) {
		t.Errorf("staff audit: err = %v, want FORBIDDEN", err)
	}
	audit, err := f.tickets.AuditTicket(ctx, f.admin, id)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !audit.Ticket.IsDeleted || len(audit.Messages) != 2 {
		t.Errorf("audit = deleted %v, %d messages", audit.Ticket.IsDeleted, len(audit.Messages))
	}
	if last := f.events.Types(); last[len(last)-1] != events.EventTicketDeleted {
		t.Errorf("last event = %v", last[len(last)-1])
	}
}

func TestTicketStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createTicket(t, f.student, "A").Ticket.ID
	f.createTicket(t, f.student, "B")
	if _, err := f.tickets.UpdateTicket(ctx, f.admin, a, UpdateTicketInput{
		AssignedTo: OptionalID{Set: true, ID: f.staff.ID},
		Status:     statusPtr(domain.TicketStatusResolved),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := f.tickets.TicketStats(ctx, f.student); !apperrors.IsForbidden(err) {
		t.Errorf("student stats: err = %v, want FORBIDDEN", err)
	}
	stats, err := f.tickets.TicketStats(ctx, f.staff)
	if err != nil {
		t.Fatalf("staff stats: %v", err)
	}
	if stats.Total != 1 || stats.ByStatus[0].Key != "Resolved" {
		t.Errorf("staff stats = %+v", stats)
	}
	stats, err = f.tickets.TicketStats(ctx, f.admin)
	if err != nil {
		t.Fatalf("admin stats: %v", err)
	}
	if stats.Total != 2 || len(stats.ByStatus) != 2 || stats.ByStatus[0].Key != "Open" {
		t.Errorf("admin stats = %+v", stats)
	}
}

func TestListTicketsDefaultsToNewestFirst(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"first", "second", "third"} {
		f.createTicket(t, f.student, title)
		f.clock.Advance(time.Minute)
	}

	page, err := f.tickets.ListTickets(context.Background(), f.admin, ListTicketsInput{})
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	var got []string
	for _, item := range page.Items {
		got = append(got, item.Ticket.Title)
	}
	if strings.Join(got, ",") != "third,second,first" {
		t.Errorf("default order = %v, want third,second,first", got)
	}
}

func TestStudentResendingAssigneeIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTicket(t, f.student, "Heating").Ticket.ID
	unassign := UpdateTicketInput{AssignedTo: OptionalID{Set: true}}

	if _, err := f.tickets.UpdateTicket(ctx, f.student, id, unassign); err != nil {
		t.Fatalf("student null assignee on unassigned ticket: %v", err)
	}
	if _, err := f.tickets.UpdateTicket(ctx, f.admin, id, UpdateTicketInput{AssignedTo: OptionalID{Set: true, ID: f.staff.ID}}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	same := UpdateTicketInput{AssignedTo: OptionalID{Set: true, ID: f.staff.ID}, Location: strPtr("Room 12")}
	if _, err := f.tickets.UpdateTicket(ctx, f.student, id, same); err != nil {
		t.Fatalf("student resending current assignee: %v", err)
	}
	if got := systemBodies(f.thread(t, id)); len(got) != 2 {
		t.Errorf("system messages = %q, want created + assigned only", got)
	}

	if _, err := f.tickets.UpdateTicket(ctx, f.student, id, unassign); !apperrors.IsForbidden(err) {
		t.Errorf("student unassigning: err = %v, want FORBIDDEN", err)
	}
	if _, err := f.tickets.UpdateTicket(ctx, f.student, id, UpdateTicketInput{AssignedTo: OptionalID{Set: true, ID: f.staff2.ID}}); !apperrors.IsForbidden(err) {
		t.Errorf("student reassigning: err = %v, want FORBIDDEN", err)
	}
}

type failingDispatcher struct{}

func (failingDispatcher) Publish(context.Context, events.Event) error {
	return errors.New("dispatcher down")
}

func (failingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func TestDispatchFailureIsLoggedNotReturned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	tickets := NewTicketService(TicketDependencies{
		TicketRepo: f.store.Tickets(), MessageRepo: f.store.Messages(), UserRepo: f.store.Users(),
		Dispatcher: failingDispatcher{}, Clock: f.clock, Logger: logger,
	})
	messages := NewMessageService(MessageDependencies{
		TicketRepo: f.store.Tickets(), MessageRepo: f.store.Messages(), UserRepo: f.store.Users(),
		Dispatcher: failingDispatcher{}, Clock: f.clock, Logger: logger,
	})

	view, err := tickets.CreateTicket(ctx, f.student, CreateTicketInput{
		Title: "Wifi", Description: "drops every hour", Category: domain.CategoryITSupport,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, err := messages.AddMessage(ctx, f.student, view.Ticket.ID, AddMessageInput{Message: "still dropping"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	entries := logs.FilterMessage("event publish failed").All()
	if len(entries) != 2 {
		t.Fatalf("warnings = %d, want 2", len(entries))
	}
	if got := entries[1].ContextMap()["event_type"]; got != string(events.EventMessageAdded) {
		t.Errorf("event_type = %v", got)
	}
}
