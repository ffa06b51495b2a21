// Package memstore is an in-process implementation of the repository
// interfaces. It backs the test suites and lets the API run without a
// database when no DSN is configured.
package memstore

import (
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/uniticket/internal/clock"
	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/repository"
)

type ticketRecord struct {
	seq    int64
	ticket domain.Ticket
}

type messageRecord struct {
	seq     int64
	message domain.Message
}

// Store holds every collection behind one lock.
type Store struct {
	mu       sync.RWMutex
	clock    clock.Clock
	seq      int64
	users    map[string]domain.User
	tickets  map[string]*ticketRecord
	messages map[string]*messageRecord
}

// New returns an empty store stamping records with clk.
func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{
		clock:    clk,
		users:    map[string]domain.User{},
		tickets:  map[string]*ticketRecord{},
		messages: map[string]*messageRecord{},
	}
}

// Tickets exposes the ticket collection.
func (s *Store) Tickets() repository.TicketRepository { return &ticketStore{s} }

// Messages exposes the message collection.
func (s *Store) Messages() repository.MessageRepository { return &messageStore{s} }

// Users exposes the identity collection.
func (s *Store) Users() repository.UserRepository { return &userStore{s} }

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func newID() string {
	return uuid.NewString()
}

func copyTicket(t domain.Ticket) domain.Ticket {
	if t.Tags != nil {
		t.Tags = append([]string(nil), t.Tags...)
	}
	if t.Attachments != nil {
		t.Attachments = append([]domain.Attachment(nil), t.Attachments...)
	}
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		t.AssignedTo = &v
	}
	t.DueDate = copyTime(t.DueDate)
	t.ResolvedAt = copyTime(t.ResolvedAt)
	t.ClosedAt = copyTime(t.ClosedAt)
	return t
}

func copyMessage(m domain.Message) domain.Message {
	if m.Attachments != nil {
		m.Attachments = append([]domain.Attachment(nil), m.Attachments...)
	}
	return m
}
