package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/repository"
)

type ticketStore struct {
	s *Store
}

func (r *ticketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.clock.Now()
	ticket.ID = newID()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	ticket.StampLifecycle(now)
	r.s.tickets[ticket.ID] = &ticketRecord{seq: r.s.nextSeq(), ticket: copyTicket(*ticket)}
	return nil
}

func (r *ticketStore) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.tickets[ticket.ID]
	if !ok || rec.ticket.IsDeleted {
		return repository.ErrNotFound
	}
	now := r.s.clock.Now()
	// Stamps already on the stored record win over a stale copy.
	if rec.ticket.ResolvedAt != nil {
		ticket.ResolvedAt = copyTime(rec.ticket.ResolvedAt)
	}
	if rec.ticket.ClosedAt != nil {
		ticket.ClosedAt = copyTime(rec.ticket.ClosedAt)
	}
	ticket.StampLifecycle(now)
	ticket.UpdatedAt = now

	updated := copyTicket(*ticket)
	updated.Title = rec.ticket.Title
	updated.Description = rec.ticket.Description
	updated.CreatedBy = rec.ticket.CreatedBy
	updated.CreatedAt = rec.ticket.CreatedAt
	updated.IsDeleted = false
	rec.ticket = updated
	*ticket = copyTicket(updated)
	return nil
}

func (r *ticketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.tickets[id]
	if !ok || rec.ticket.IsDeleted {
		return nil, repository.ErrNotFound
	}
	t := copyTicket(rec.ticket)
	return &t, nil
}

func (r *ticketStore) GetByIDIncludingDeleted(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t := copyTicket(rec.ticket)
	return &t, nil
}

func (r *ticketStore) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	filter = filter.Normalize()

	r.s.mu.RLock()
	matched := make([]*ticketRecord, 0)
	for _, rec := range r.s.tickets {
		if matchesFilter(&rec.ticket, filter) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return lessTicket(matched[i], matched[j], filter.SortBy, filter.SortDesc)
	})
	total := len(matched)
	result := []domain.Ticket{}
	for i := filter.Offset; i < total && len(result) < filter.Limit; i++ {
		result = append(result, copyTicket(matched[i].ticket))
	}
	r.s.mu.RUnlock()

	return result, total, nil
}

func (r *ticketStore) Stats(_ context.Context, scope domain.TicketScope) (*domain.TicketStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byStatus := map[string]int{}
	byPriority := map[string]int{}
	byCategory := map[string]int{}
	stats := &domain.TicketStats{}
	for _, rec := range r.s.tickets {
		t := &rec.ticket
		if t.IsDeleted || !scope.Matches(t) {
			continue
		}
		stats.Total++
		byStatus[string(t.Status)]++
		byPriority[string(t.Priority)]++
		byCategory[string(t.Category)]++
	}
	stats.ByStatus = groups(byStatus)
	stats.ByPriority = groups(byPriority)
	stats.ByCategory = groups(byCategory)
	repository.SortGroupCounts(stats)
	return stats, nil
}

func (r *ticketStore) Touch(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.tickets[id]
	if !ok || rec.ticket.IsDeleted {
		return repository.ErrNotFound
	}
	rec.ticket.UpdatedAt = r.s.clock.Now()
	return nil
}

func (r *ticketStore) SoftDelete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.tickets[id]
	if !ok || rec.ticket.IsDeleted {
		return repository.ErrNotFound
	}
	rec.ticket.IsDeleted = true
	rec.ticket.UpdatedAt = r.s.clock.Now()
	return nil
}

func groups(counts map[string]int) []domain.GroupCount {
	out := make([]domain.GroupCount, 0, len(counts))
	for key, count := range counts {
		out = append(out, domain.GroupCount{Key: key, Count: count})
	}
	return out
}

func matchesFilter(t *domain.Ticket, f repository.TicketFilter) bool {
	if t.IsDeleted || !f.Scope.Matches(t) {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Category != nil && t.Category != *f.Category {
		return false
	}
	if f.Department != nil && t.Department != *f.Department {
		return false
	}
	if f.AssignedTo != nil && !t.IsAssignedTo(*f.AssignedTo) {
		return false
	}
	if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.SearchTerm)); term != "" {
		if !strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

// lessTicket orders by the requested field with insertion order as the tie
// breaker. Missing due dates sort last in either direction.
func lessTicket(a, b *ticketRecord, field repository.TicketSortField, desc bool) bool {
	if field == repository.SortByDueDate {
		da, db := a.ticket.DueDate, b.ticket.DueDate
		switch {
		case da == nil && db == nil:
			return tieBreak(a, b, desc)
		case da == nil:
			return false
		case db == nil:
			return true
		}
		if c := compareTime(*da, *db); c != 0 {
			return (c < 0) != desc
		}
		return tieBreak(a, b, desc)
	}

	c := compareField(&a.ticket, &b.ticket, field)
	if c == 0 {
		return tieBreak(a, b, desc)
	}
	return (c < 0) != desc
}

func tieBreak(a, b *ticketRecord, desc bool) bool {
	return (a.seq < b.seq) != desc
}

func compareField(a, b *domain.Ticket, field repository.TicketSortField) int {
	switch field {
	case repository.SortByUpdatedAt:
		return compareTime(a.UpdatedAt, b.UpdatedAt)
	case repository.SortByPriority:
		return strings.Compare(string(a.Priority), string(b.Priority))
	case repository.SortByStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case repository.SortByCategory:
		return strings.Compare(string(a.Category), string(b.Category))
	case repository.SortByTitle:
		return strings.Compare(a.Title, b.Title)
	default:
		return compareTime(a.CreatedAt, b.CreatedAt)
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
