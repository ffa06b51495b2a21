package memstore

import (
	"context"
	"sort"

	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/repository"
)

type messageStore struct {
	s *Store
}

func (r *messageStore) Create(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.clock.Now()
	msg.ID = newID()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	r.s.messages[msg.ID] = &messageRecord{seq: r.s.nextSeq(), message: copyMessage(*msg)}
	return nil
}

func (r *messageStore) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m := copyMessage(rec.message)
	return &m, nil
}

func (r *messageStore) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]*messageRecord, 0)
	for _, rec := range r.s.messages {
		if rec.message.TicketID != ticketID {
			continue
		}
		if rec.message.IsInternal && !includeInternal {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		if c := compareTime(matched[i].message.CreatedAt, matched[j].message.CreatedAt); c != 0 {
			return c < 0
		}
		return matched[i].seq < matched[j].seq
	})
	result := make([]domain.Message, 0, len(matched))
	for _, rec := range matched {
		result = append(result, copyMessage(rec.message))
	}
	return result, nil
}

func (r *messageStore) Update(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.messages[msg.ID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.message.Body = msg.Body
	rec.message.Attachments = copyMessage(*msg).Attachments
	rec.message.UpdatedAt = r.s.clock.Now()
	*msg = copyMessage(rec.message)
	return nil
}

func (r *messageStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.messages[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.messages, id)
	return nil
}
