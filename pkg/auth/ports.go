package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/myauth/pkg/domain"
)

// UserRepository loads and stores user accounts.
// Lookups return domain.ErrUserNotFound when nothing matches; Save returns a
// *domain.DuplicateFieldError when a storage-level uniqueness rule is violated.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByField(ctx context.Context, field domain.UniqueField, value string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
}

// CredentialVerifier compares a plaintext secret to a stored hash.
type CredentialVerifier interface {
	Verify(plaintext, storedHash string) bool
}

// CredentialHasher produces the stored hash for a new secret.
type CredentialHasher interface {
	Hash(plaintext string) (string, error)
}

// Notifier delivers an HTML message to an email address.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
