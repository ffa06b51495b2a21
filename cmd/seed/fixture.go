package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/uniticket/internal/auth"
	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/repository"
)

//go:embed fixture.yaml
var defaultFixture []byte

// Fixture is the demo dataset.
type Fixture struct {
	Users   []FixtureUser   `yaml:"users"`
	Tickets []FixtureTicket `yaml:"tickets"`
}

// FixtureUser is one seeded account. Key is how tickets refer to it.
type FixtureUser struct {
	Key         string      `yaml:"key"`
	Name        string      `yaml:"name"`
	Email       string      `yaml:"email"`
	Password    string      `yaml:"password"`
	Role        domain.Role `yaml:"role"`
	Department  string      `yaml:"department"`
	StudentID   string      `yaml:"studentId"`
	StaffID     string      `yaml:"staffId"`
	PhoneNumber string      `yaml:"phoneNumber"`
}

// FixtureTicket is one seeded ticket with its thread. The "Ticket created"
// entry is always written first and need not be listed.
type FixtureTicket struct {
	Title       string                `yaml:"title"`
	Description string                `yaml:"description"`
	Category    domain.TicketCategory `yaml:"category"`
	Priority    domain.TicketPriority `yaml:"priority"`
	Status      domain.TicketStatus   `yaml:"status"`
	CreatedBy   string                `yaml:"createdBy"`
	AssignedTo  string                `yaml:"assignedTo"`
	Department  string                `yaml:"department"`
	Location    string                `yaml:"location"`
	Tags        []string              `yaml:"tags"`
	Resolution  string                `yaml:"resolution"`
	Messages    []FixtureMessage      `yaml:"messages"`
}

// FixtureMessage is one thread entry.
type FixtureMessage struct {
	Sender   string `yaml:"sender"`
	Body     string `yaml:"body"`
	Internal bool   `yaml:"internal"`
	System   bool   `yaml:"system"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Users    int
	Tickets  int
	Messages int
}

// LoadFixture reads path, or the embedded default when path is empty.
func LoadFixture(path string) (*Fixture, error) {
	raw := defaultFixture
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read fixture %s", path)
		}
	}
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, errors.Wrap(err, "parse fixture")
	}
	return &fx, fx.validate()
}

func (fx *Fixture) validate() error {
	keys := make(map[string]domain.Role, len(fx.Users))
	for _, u := range fx.Users {
		if u.Key == "" || u.Email == "" || u.Password == "" {
			return fmt.Errorf("user %q: key, email and password are required", u.Name)
		}
		if !u.Role.Valid() {
			return fmt.Errorf("user %s: unknown role %q", u.Key, u.Role)
		}
		keys[u.Key] = u.Role
	}
	for _, t := range fx.Tickets {
		if !t.Category.Valid() || !t.Priority.Valid() || !t.Status.Valid() {
			return fmt.Errorf("ticket %q: invalid category, priority or status", t.Title)
		}
		if _, ok := keys[t.CreatedBy]; !ok {
			return fmt.Errorf("ticket %q: unknown creator %q", t.Title, t.CreatedBy)
		}
		if t.AssignedTo != "" && !keys[t.AssignedTo].IsStaffOrAdmin() {
			return fmt.Errorf("ticket %q: assignee %q is not staff", t.Title, t.AssignedTo)
		}
		for _, m := range t.Messages {
			if _, ok := keys[m.Sender]; !ok {
				return fmt.Errorf("ticket %q: unknown sender %q", t.Title, m.Sender)
			}
		}
	}
	return nil
}

// Seeder writes a fixture through the repositories.
type Seeder struct {
	Users      repository.UserRepository
	Tickets    repository.TicketRepository
	Messages   repository.MessageRepository
	BcryptCost int
}

// Apply writes every user, ticket and message in fx.
func (s *Seeder) Apply(ctx context.Context, fx *Fixture) (Summary, error) {
	var sum Summary
	ids := make(map[string]string, len(fx.Users))
	for _, u := range fx.Users {
		hash, err := auth.HashPassword(u.Password, s.BcryptCost)
		if err != nil {
			return sum, err
		}
		user := &domain.User{
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: hash,
			Role:         u.Role,
			Department:   u.Department,
			StudentID:    u.StudentID,
			StaffID:      u.StaffID,
			PhoneNumber:  u.PhoneNumber,
			Active:       true,
		}
		if err := s.Users.Create(ctx, user); err != nil {
			return sum, errors.Wrapf(err, "create user %s", u.Email)
		}
		ids[u.Key] = user.ID
		sum.Users++
	}

	for _, t := range fx.Tickets {
		ticket := &domain.Ticket{
			Title:       t.Title,
			Description: t.Description,
			Category:    t.Category,
			Priority:    t.Priority,
			Status:      t.Status,
			Department:  t.Department,
			Location:    t.Location,
			Tags:        t.Tags,
			Resolution:  t.Resolution,
			CreatedBy:   ids[t.CreatedBy],
		}
		if t.AssignedTo != "" {
			assignee := ids[t.AssignedTo]
			ticket.AssignedTo = &assignee
		}
		if err := s.Tickets.Create(ctx, ticket); err != nil {
			return sum, errors.Wrapf(err, "create ticket %q", t.Title)
		}
		sum.Tickets++

		thread := append([]FixtureMessage{{
			Sender: t.CreatedBy,
			Body:   domain.SystemMessageTicketCreated,
			System: true,
		}}, t.Messages...)
		for _, m := range thread {
			msg := &domain.Message{
				TicketID:        ticket.ID,
				SenderID:        ids[m.Sender],
				Body:            m.Body,
				IsInternal:      m.Internal,
				IsSystemMessage: m.System,
			}
			if err := s.Messages.Create(ctx, msg); err != nil {
				return sum, errors.Wrapf(err, "create message on %q", t.Title)
			}
			sum.Messages++
		}
	}
	return sum, nil
}
