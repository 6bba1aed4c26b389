package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/myauth/pkg/domain"
)

func TestMemoryUsers_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUsersRepository()

	user := &domain.User{
		ID:      uuid.New(),
		Email:   "a@x.com",
		Profile: domain.Profile{Phone: "555", IDNumber: "ID-1"},
	}
	require.NoError(t, repo.Save(ctx, user))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	got, err = repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got, err = repo.FindByField(ctx, domain.FieldIDNumber, "ID-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.FindByField(ctx, domain.FieldPhone, "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMemoryUsers_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUsersRepository()

	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	user := &domain.User{ID: uuid.New(), Email: "a@x.com", Profile: domain.Profile{DateOfBirth: &dob}}
	require.NoError(t, repo.Save(ctx, user))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	got.EmailVerified = true
	*got.Profile.DateOfBirth = time.Time{}

	again, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, again.EmailVerified)
	assert.True(t, again.Profile.DateOfBirth.Equal(dob))
}

func TestMemoryUsers_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUsersRepository()

	require.NoError(t, repo.Save(ctx, &domain.User{ID: uuid.New(), Email: "a@x.com"}))
	err := repo.Save(ctx, &domain.User{ID: uuid.New(), Email: "a@x.com"})

	var dup *domain.DuplicateFieldError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, domain.FieldEmail, dup.Field)
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)
	assert.Equal(t, 1, repo.Len())
}

func TestMemoryUsers_VerificationIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUsersRepository()

	user := &domain.User{ID: uuid.New(), Email: "a@x.com", EmailVerified: true}
	require.NoError(t, repo.Save(ctx, user))

	stale := *user
	stale.EmailVerified = false
	require.NoError(t, repo.Save(ctx, &stale))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
}
