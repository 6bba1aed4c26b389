package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/tendant/myauth/pkg/domain"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name            string
		email           string
		strict          bool
		blockDisposable bool
		wantErr         bool
	}{
		{
			name:  "valid email",
			email: "test@example.com",
		},
		{
			name:  "valid email with subdomain",
			email: "test@mail.example.com",
		},
		{
			name:  "valid email with plus",
			email: "test+tag@example.com",
		},
		{
			name:  "mixed case and padding",
			email: "  Test@Example.COM ",
		},
		{
			name:    "empty email",
			email:   "",
			wantErr: true,
		},
		{
			name:    "invalid - no @",
			email:   "invalid.com",
			wantErr: true,
		},
		{
			name:    "invalid - no domain",
			email:   "test@",
			wantErr: true,
		},
		{
			name:    "invalid - no local part",
			email:   "@example.com",
			wantErr: true,
		},
		{
			name:    "invalid - display name",
			email:   "Test User <test@example.com>",
			wantErr: true,
		},
		{
			name:    "too long",
			email:   strings.Repeat("a", 300) + "@example.com",
			wantErr: true,
		},
		{
			name:            "disposable email - blocked",
			email:           "test@tempmail.com",
			blockDisposable: true,
			wantErr:         true,
		},
		{
			name:  "disposable email - allowed",
			email: "test@tempmail.com",
		},
		{
			name:   "strict mode - valid",
			email:  "test@example.com",
			strict: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email, tt.strict, tt.blockDisposable)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidEmail) {
				t.Errorf("ValidateEmail() error = %v, want ErrInvalidEmail", err)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{
			name:  "lowercase",
			email: "Test@Example.COM",
			want:  "test@example.com",
		},
		{
			name:  "trim spaces",
			email: "  test@example.com  ",
			want:  "test@example.com",
		},
		{
			name:  "both",
			email: "  Test@Example.COM  ",
			want:  "test@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeEmail(tt.email)
			if got != tt.want {
				t.Errorf("NormalizeEmail() = %v, want %v", got, tt.want)
			}
		})
	}
}
