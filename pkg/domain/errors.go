package domain

import (
	"errors"
	"fmt"
)

// Account errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("email not verified")
)

// Session errors
var (
	ErrUnauthorized             = errors.New("refresh token not recognized")
	ErrInvalidToken             = errors.New("invalid token")
	ErrInvalidVerificationToken = errors.New("invalid verification token")
)

// Token codec errors
var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenWrongKind        = errors.New("token kind mismatch")
)

// Infrastructure errors
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotificationFailed = errors.New("notification failed")
)

// Validation errors
var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrPasswordRequired = errors.New("password is required")
)

// DuplicateFieldError reports which unique field collided during registration.
// It matches ErrDuplicateAccount under errors.Is.
type DuplicateFieldError struct {
	Field UniqueField
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field.Label())
}

func (e *DuplicateFieldError) Is(target error) bool {
	return target == ErrDuplicateAccount
}

// StorageError wraps a backend failure so callers can match ErrStorageUnavailable.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
