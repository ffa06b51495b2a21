package memstore

import (
	"context"
	"strings"

	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/repository"
)

type userStore struct {
	s *Store
}

func (r *userStore) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) ||
			(user.StudentID != "" && existing.StudentID == user.StudentID) ||
			(user.StaffID != "" && existing.StaffID == user.StaffID) {
			return repository.ErrDuplicate
		}
	}
	now := r.s.clock.Now()
	user.ID = newID()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = *user
	return nil
}

func (r *userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *userStore) GetByStudentID(_ context.Context, studentID string) (*domain.User, error) {
	if studentID == "" {
		return nil, repository.ErrNotFound
	}
	return r.find(func(u *domain.User) bool { return u.StudentID == studentID })
}

func (r *userStore) GetByStaffID(_ context.Context, staffID string) (*domain.User, error) {
	if staffID == "" {
		return nil, repository.ErrNotFound
	}
	return r.find(func(u *domain.User) bool { return u.StaffID == staffID })
}

func (r *userStore) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := []domain.User{}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if user, ok := r.s.users[id]; ok {
			result = append(result, user)
		}
	}
	return result, nil
}

func (r *userStore) find(match func(*domain.User) bool) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, user := range r.s.users {
		if match(&user) {
			found := user
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}
