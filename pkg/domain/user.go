package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents the account.
type User struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  string
	EmailVerified bool
	Profile       Profile
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile holds the personal fields collected at registration.
// Phone and IDNumber take part in uniqueness checks when configured.
type Profile struct {
	FirstName   string
	LastName    string
	Phone       string
	IDNumber    string
	Gender      string
	DateOfBirth *time.Time
	Address     string
}

// DisplayName returns the name shown back to the user after login.
func (u *User) DisplayName() string {
	if u.Profile.FirstName != "" {
		return u.Profile.FirstName
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// MarkVerified flips the verification flag. It reports whether the flag changed;
// a verified user is never reverted.
func (u *User) MarkVerified(now time.Time) bool {
	if u.EmailVerified {
		return false
	}
	u.EmailVerified = true
	u.UpdatedAt = now
	return true
}

// UniqueField names a user attribute that must be unique across accounts.
type UniqueField string

const (
	FieldEmail    UniqueField = "email"
	FieldPhone    UniqueField = "phone"
	FieldIDNumber UniqueField = "id_number"
)

// Label returns the human-readable field name used in messages.
func (f UniqueField) Label() string {
	switch f {
	case FieldEmail:
		return "Email"
	case FieldPhone:
		return "Phone"
	case FieldIDNumber:
		return "ID Number"
	default:
		return string(f)
	}
}

// Value returns the user's value for the field.
func (u *User) Value(f UniqueField) string {
	switch f {
	case FieldEmail:
		return u.Email
	case FieldPhone:
		return u.Profile.Phone
	case FieldIDNumber:
		return u.Profile.IDNumber
	default:
		return ""
	}
}

// ParseUniqueFields parses a comma separated field list such as "email,phone,id_number".
// Email is always required.
func ParseUniqueFields(s string) ([]UniqueField, error) {
	var fields []UniqueField
	seen := make(map[UniqueField]bool)
	for _, part := range strings.Split(s, ",") {
		f := UniqueField(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		switch f {
		case FieldEmail, FieldPhone, FieldIDNumber:
		default:
			return nil, fmt.Errorf("unknown unique field %q", f)
		}
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	if !seen[FieldEmail] {
		return nil, fmt.Errorf("unique fields must include %q", FieldEmail)
	}
	return fields, nil
}
