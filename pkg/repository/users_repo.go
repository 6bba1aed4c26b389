package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/myauth/pkg/domain"
)

const pqUniqueViolation = "23505"

// uniqueConstraints maps Postgres constraint names to the field they protect.
var uniqueConstraints = map[string]domain.UniqueField{
	"users_email_key": domain.FieldEmail,
}

// lookupColumns whitelists the columns FindByField may filter on.
var lookupColumns = map[domain.UniqueField]string{
	domain.FieldEmail:    "email",
	domain.FieldPhone:    "phone",
	domain.FieldIDNumber: "id_number",
}

const selectUser = `
	SELECT id, email, password_hash, email_verified, first_name, last_name,
	       COALESCE(phone, ''), COALESCE(id_number, ''), gender, date_of_birth, address,
	       created_at, updated_at
	FROM users
`

// UsersRepository handles user persistence in Postgres.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// FindByID retrieves a user by ID.
func (r *UsersRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, "find user by id", selectUser+`WHERE id = $1`, id)
}

// FindByEmail retrieves a user by email.
func (r *UsersRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "find user by email", selectUser+`WHERE email = $1`, email)
}

// FindByField retrieves the first user whose field equals value.
func (r *UsersRepository) FindByField(ctx context.Context, field domain.UniqueField, value string) (*domain.User, error) {
	column, ok := lookupColumns[field]
	if !ok {
		return nil, fmt.Errorf("unsupported lookup field %q", field)
	}
	query := selectUser + fmt.Sprintf(`WHERE %s = $1 LIMIT 1`, column)
	return r.findOne(ctx, "find user by "+column, query, value)
}

// Save inserts or updates a user. Email verification is never reverted by a save.
func (r *UsersRepository) Save(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, email_verified, first_name, last_name,
		                   phone, id_number, gender, date_of_birth, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			email_verified = users.email_verified OR EXCLUDED.email_verified,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			id_number = EXCLUDED.id_number,
			gender = EXCLUDED.gender,
			date_of_birth = EXCLUDED.date_of_birth,
			address = EXCLUDED.address,
			updated_at = EXCLUDED.updated_at
	`
	p := user.Profile
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.EmailVerified, p.FirstName, p.LastName,
		p.Phone, p.IDNumber, p.Gender, p.DateOfBirth, p.Address, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("save user", err)
	}
	return nil
}

func (r *UsersRepository) findOne(ctx context.Context, op, query string, arg any) (*domain.User, error) {
	user := &domain.User{}
	var dob sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.EmailVerified,
		&user.Profile.FirstName, &user.Profile.LastName,
		&user.Profile.Phone, &user.Profile.IDNumber, &user.Profile.Gender,
		&dob, &user.Profile.Address,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.StorageError(op, err)
	}
	if dob.Valid {
		t := dob.Time
		user.Profile.DateOfBirth = &t
	}
	return user, nil
}

func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		if field, ok := uniqueConstraints[pqErr.Constraint]; ok {
			return &domain.DuplicateFieldError{Field: field}
		}
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateAccount)
	}
	return domain.StorageError(op, err)
}
