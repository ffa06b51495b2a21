package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/uniticket/internal/clock"
	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/events"
	"github.com/spec-kit/uniticket/internal/policy"
	"github.com/spec-kit/uniticket/internal/repository/memstore"
)

type fixture struct {
	store    *memstore.Store
	clock    *clock.FakeClock
	events   *events.Recorder
	tickets  *TicketService
	messages *MessageService

	student  policy.Actor
	student2 policy.Actor
	staff    policy.Actor
	staff2   policy.Actor
	admin    policy.Actor
	inactive policy.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.Fake(time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC))
	store := memstore.New(clk)
	recorder := &events.Recorder{}

	f := &fixture{
		store:  store,
		clock:  clk,
		events: recorder,
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:  store.Tickets(),
			MessageRepo: store.Messages(),
			UserRepo:    store.Users(),
			Dispatcher:  recorder,
			Clock:       clk,
		}),
		messages: NewMessageService(MessageDependencies{
			TicketRepo:  store.Tickets(),
			MessageRepo: store.Messages(),
			UserRepo:    store.Users(),
			Dispatcher:  recorder,
			Clock:       clk,
		}),
	}
	f.student = f.addUser(t, "Sam Student", domain.RoleStudent, true)
	f.student2 = f.addUser(t, "Sia Student", domain.RoleStudent, true)
	f.staff = f.addUser(t, "Tess Staff", domain.RoleStaff, true)
	f.staff2 = f.addUser(t, "Tom Staff", domain.RoleStaff, true)
	f.admin = f.addUser(t, "Ada Admin", domain.RoleAdmin, true)
	f.inactive = f.addUser(t, "Ian Inactive", domain.RoleStaff, false)
	return f
}

func (f *fixture) addUser(t *testing.T, name string, role domain.Role, active bool) policy.Actor {
	t.Helper()
	user := &domain.User{
		Name:   name,
		Email:  strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@uni.edu",
		Role:   role,
		Active: active,
	}
	if err := f.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return policy.ActorFromUser(user)
}

func (f *fixture) createTicket(t *testing.T, actor policy.Actor, title string) *TicketView {
	t.Helper()
	view, err := f.tickets.CreateTicket(context.Background(), actor, CreateTicketInput{
		Title:       title,
		Description: "details for " + title,
		Category:    domain.CategoryITSupport,
	})
	if err != nil {
		t.Fatalf("create ticket %q: %v", title, err)
	}
	return view
}

func (f *fixture) thread(t *testing.T, ticketID string) []domain.Message {
	t.Helper()
	msgs, err := f.store.Messages().ListByTicket(context.Background(), ticketID, true)
	if err != nil {
		t.Fatalf("list thread: %v", err)
	}
	return msgs
}

func systemBodies(msgs []domain.Message) []string {
	var out []string
	for _, m := range msgs {
		if m.IsSystemMessage {
			out = append(out, m.Body)
		}
	}
	return out
}

func statusPtr(s domain.TicketStatus) *domain.TicketStatus       { return &s }
func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }
func strPtr(s string) *string                                    { return &s }
