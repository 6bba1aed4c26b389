package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/myauth/pkg/domain"
)

// MemoryUsersRepository keeps users in process memory. It enforces email
// uniqueness like the Postgres schema does.
type MemoryUsersRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
}

// NewMemoryUsersRepository creates an empty in-memory repository.
func NewMemoryUsersRepository() *MemoryUsersRepository {
	return &MemoryUsersRepository{users: make(map[uuid.UUID]domain.User)}
}

func (r *MemoryUsersRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return clone(u), nil
}

func (r *MemoryUsersRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.FindByField(ctx, domain.FieldEmail, email)
}

func (r *MemoryUsersRepository) FindByField(_ context.Context, field domain.UniqueField, value string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if value == "" {
		return nil, domain.ErrUserNotFound
	}
	for _, u := range r.users {
		if u.Value(field) == value {
			return clone(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *MemoryUsersRepository) Save(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.users {
		if id != user.ID && u.Email == user.Email {
			return &domain.DuplicateFieldError{Field: domain.FieldEmail}
		}
	}

	stored := *clone(*user)
	if prev, ok := r.users[user.ID]; ok && prev.EmailVerified {
		stored.EmailVerified = true
	}
	r.users[user.ID] = stored
	return nil
}

// Len returns the number of stored users.
func (r *MemoryUsersRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func clone(u domain.User) *domain.User {
	if u.Profile.DateOfBirth != nil {
		dob := *u.Profile.DateOfBirth
		u.Profile.DateOfBirth = &dob
	}
	return &u
}
