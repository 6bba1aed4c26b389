package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tendant/myauth/pkg/domain"
	"github.com/tendant/myauth/pkg/registry"
)

// SessionsRepository is a session registry kept in Postgres, for deployments
// that share a database but not a Redis. Rows are keyed by token digest and
// count as absent once expires_at has passed.
type SessionsRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSessionsRepository creates a new sessions repository. Inserted tokens
// stay active for ttl.
func NewSessionsRepository(db *sql.DB, ttl time.Duration) (*SessionsRepository, error) {
	if db == nil {
		return nil, errors.New("sessions: db is required")
	}
	if ttl <= 0 {
		return nil, errors.New("sessions: ttl must be positive")
	}
	return &SessionsRepository{db: db, ttl: ttl, now: time.Now}, nil
}

var _ registry.Registry = (*SessionsRepository)(nil)

// Insert records token as active.
func (r *SessionsRepository) Insert(ctx context.Context, token string) error {
	query := `
		INSERT INTO sessions (token_hash, created_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`
	now := r.now()
	if _, err := r.db.ExecContext(ctx, query, registry.HashToken(token), now, now.Add(r.ttl)); err != nil {
		return domain.StorageError("sessions insert", err)
	}
	return nil
}

// Contains reports whether token is active.
func (r *SessionsRepository) Contains(ctx context.Context, token string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM sessions WHERE token_hash = $1 AND expires_at > $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, registry.HashToken(token), r.now()).Scan(&ok); err != nil {
		return false, domain.StorageError("sessions contains", err)
	}
	return ok, nil
}

// Remove deletes token.
func (r *SessionsRepository) Remove(ctx context.Context, token string) error {
	query := `DELETE FROM sessions WHERE token_hash = $1`
	if _, err := r.db.ExecContext(ctx, query, registry.HashToken(token)); err != nil {
		return domain.StorageError("sessions remove", err)
	}
	return nil
}

// DeleteExpired deletes expired rows and returns how many were removed.
func (r *SessionsRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= $1`
	result, err := r.db.ExecContext(ctx, query, r.now())
	if err != nil {
		return 0, domain.StorageError("sessions delete expired", err)
	}
	return result.RowsAffected()
}
