package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/uniticket/internal/domain"
)

// ErrNotFound is returned by every store when a record does not resolve.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique user identifier is already taken.
var ErrDuplicate = errors.New("duplicate record")

// TicketSortField names the columns a listing may be ordered by.
type TicketSortField string

const (
	SortByCreatedAt TicketSortField = "createdAt"
	SortByUpdatedAt TicketSortField = "updatedAt"
	SortByPriority  TicketSortField = "priority"
	SortByStatus    TicketSortField = "status"
	SortByCategory  TicketSortField = "category"
	SortByTitle     TicketSortField = "title"
	SortByDueDate   TicketSortField = "dueDate"
)

// Valid reports whether f is a sortable field.
func (f TicketSortField) Valid() bool {
	_, ok := sortColumns[f]
	return ok
}

var sortColumns = map[TicketSortField]string{
	SortByCreatedAt: "created_at",
	SortByUpdatedAt: "updated_at",
	SortByPriority:  "priority",
	SortByStatus:    "status",
	SortByCategory:  "category",
	SortByTitle:     "title",
	SortByDueDate:   "due_date",
}

// TicketFilter captures listing parameters. Scope and the equality filters
// are always combined with AND.
type TicketFilter struct {
	Scope      domain.TicketScope
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	Category   *domain.TicketCategory
	Department *string
	AssignedTo *string
	CreatedBy  *string
	SearchTerm string
	SortBy     TicketSortField
	SortDesc   bool
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence. Lookups never resolve
// soft-deleted tickets unless the method name says otherwise.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByIDIncludingDeleted(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	Stats(ctx context.Context, scope domain.TicketScope) (*domain.TicketStats, error)
	Touch(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
}

// MessageRepository manages ticket thread messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Message, error)
	Update(ctx context.Context, msg *domain.Message) error
	Delete(ctx context.Context, id string) error
}

// UserRepository defines read access to the identity store plus the
// registration write used by the auth flow and seeding.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByStudentID(ctx context.Context, studentID string) (*domain.User, error)
	GetByStaffID(ctx context.Context, staffID string) (*domain.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.User, error)
}

// Normalize fills listing defaults.
func (f TicketFilter) Normalize() TicketFilter {
	if f.SortBy == "" || !f.SortBy.Valid() {
		f.SortBy = SortByCreatedAt
	}
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func utcNow() time.Time {
	return time.Now().UTC()
}
