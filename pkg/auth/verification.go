package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/myauth/pkg/domain"
	"github.com/tendant/myauth/pkg/token"
)

// DefaultVerificationTTL is how long an email verification link stays valid.
const DefaultVerificationTTL = 24 * time.Hour

// VerifyEmailPath is the route prefix the verification link points at.
const VerifyEmailPath = "/api/auth/verify-email/"

// User-facing messages.
const (
	MsgRegistered      = "Registration successful! Check your email to verify your account."
	MsgVerified        = "Email verified successfully. You can now log in."
	MsgAlreadyVerified = "Email already verified"
	MsgResent          = "Verification email resent successfully"
)

// VerificationConfig holds registration and verification settings.
type VerificationConfig struct {
	VerificationTTL time.Duration
	// AppBaseURL prefixes the verification link, e.g. https://auth.example.com.
	AppBaseURL string
	// UniqueFields lists the user attributes checked for collisions at registration.
	UniqueFields          []domain.UniqueField
	StrictEmailValidation bool
	BlockDisposableEmail  bool
	Now                   func() time.Time
}

// VerificationService registers accounts and gates them behind email verification.
type VerificationService struct {
	config   VerificationConfig
	codec    *token.Codec
	users    UserRepository
	hasher   CredentialHasher
	notifier Notifier
	logger   *slog.Logger
}

// NewVerificationService creates a new verification service.
func NewVerificationService(
	config VerificationConfig,
	codec *token.Codec,
	users UserRepository,
	hasher CredentialHasher,
	notifier Notifier,
	logger *slog.Logger,
) *VerificationService {
	if config.VerificationTTL == 0 {
		config.VerificationTTL = DefaultVerificationTTL
	}
	if len(config.UniqueFields) == 0 {
		config.UniqueFields = []domain.UniqueField{domain.FieldEmail}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationService{
		config:   config,
		codec:    codec,
		users:    users,
		hasher:   hasher,
		notifier: notifier,
		logger:   logger,
	}
}

// RegisterInput is the registration profile.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	IDNumber    string
	Gender      string
	DateOfBirth *time.Time
	Address     string
}

// RegisterResult reports a created account. It never carries the verification token.
type RegisterResult struct {
	UserID  uuid.UUID
	Message string
}

// VerifyResult reports the outcome of a successful verification.
type VerifyResult struct {
	UserID          uuid.UUID
	AlreadyVerified bool
	Message         string
}

// Register creates an unverified account and emails a verification link.
// A failed email does not undo the account; the user can ask for a resend.
func (s *VerificationService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if err := ValidateEmail(in.Email, s.config.StrictEmailValidation, s.config.BlockDisposableEmail); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, domain.ErrPasswordRequired
	}

	now := s.config.Now()
	user := &domain.User{
		ID:    uuid.New(),
		Email: NormalizeEmail(in.Email),
		Profile: domain.Profile{
			FirstName:   SanitizeName(in.FirstName),
			LastName:    SanitizeName(in.LastName),
			Phone:       SanitizeIdentifier(in.Phone),
			IDNumber:    SanitizeIdentifier(in.IDNumber),
			Gender:      SanitizeText(in.Gender),
			DateOfBirth: in.DateOfBirth,
			Address:     SanitizeText(in.Address),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.checkUnique(ctx, user); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	if err := s.sendVerification(ctx, user, false); err != nil {
		s.logger.Warn("verification email not sent", "user_id", user.ID, "error", err)
	}

	return &RegisterResult{UserID: user.ID, Message: MsgRegistered}, nil
}

// VerifyEmail marks the token's subject as verified. Any codec failure, or a
// subject that no longer exists, fails with ErrInvalidVerificationToken.
// Verifying an already verified account succeeds without writing.
func (s *VerificationService) VerifyEmail(ctx context.Context, raw string) (*VerifyResult, error) {
	v, err := s.codec.VerifyKind(raw, token.KindVerify)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidVerificationToken, err)
	}
	id, err := uuid.Parse(v.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidVerificationToken, domain.ErrTokenMalformed)
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidVerificationToken, err)
		}
		return nil, err
	}

	if !user.MarkVerified(s.config.Now()) {
		return &VerifyResult{UserID: user.ID, AlreadyVerified: true, Message: MsgAlreadyVerified}, nil
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	return &VerifyResult{UserID: user.ID, Message: MsgVerified}, nil
}

// ResendVerification emails a fresh link. Earlier links stay valid until they expire.
func (s *VerificationService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return domain.ErrAlreadyVerified
	}

	if err := s.sendVerification(ctx, user, true); err != nil {
		s.logger.Warn("verification email not resent", "user_id", user.ID, "error", err)
	}
	return nil
}

func (s *VerificationService) checkUnique(ctx context.Context, user *domain.User) error {
	for _, field := range s.config.UniqueFields {
		value := user.Value(field)
		if value == "" {
			continue
		}
		_, err := s.users.FindByField(ctx, field, value)
		switch {
		case err == nil:
			return &domain.DuplicateFieldError{Field: field}
		case errors.Is(err, domain.ErrUserNotFound):
		default:
			return err
		}
	}
	return nil
}

// sendVerification issues a verify token and hands the email to the notifier.
// Failures match domain.ErrNotificationFailed.
func (s *VerificationService) sendVerification(ctx context.Context, user *domain.User, resend bool) error {
	issued, err := s.codec.Issue(user.ID.String(), token.KindVerify, s.config.VerificationTTL)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}

	subject := subjectVerify
	if resend {
		subject = subjectResend
	}

	body, err := renderVerificationEmail(verificationEmail{
		Name:      user.DisplayName(),
		Link:      s.verificationLink(issued.Value),
		ExpiresIn: humanDuration(s.config.VerificationTTL),
		Resend:    resend,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}

	if err := s.notifier.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}
	return nil
}

func (s *VerificationService) verificationLink(raw string) string {
	return strings.TrimRight(s.config.AppBaseURL, "/") + VerifyEmailPath + url.PathEscape(raw)
}
