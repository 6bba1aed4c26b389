package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/myauth/pkg/domain"
	"github.com/tendant/myauth/pkg/registry"
	"github.com/tendant/myauth/pkg/token"
)

const (
	// Default token lifetimes
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeBearer = "Bearer"
)

// SessionConfig holds session configuration.
type SessionConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// SessionService issues, renews and revokes sessions.
//
// Access tokens are verified statelessly. Refresh tokens must additionally be
// present in the registry, which is the only record of revocation.
type SessionService struct {
	config   SessionConfig
	codec    *token.Codec
	registry registry.Registry
	users    UserRepository
	verifier CredentialVerifier
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, codec *token.Codec, reg registry.Registry, users UserRepository, verifier CredentialVerifier) *SessionService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	return &SessionService{
		config:   config,
		codec:    codec,
		registry: reg,
		users:    users,
		verifier: verifier,
	}
}

// AccessTokenTTL returns the access token TTL.
func (s *SessionService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// RefreshTokenTTL returns the refresh token TTL.
func (s *SessionService) RefreshTokenTTL() time.Duration {
	return s.config.RefreshTokenTTL
}

// LoginResult is a new session and the profile data shown to the client.
type LoginResult struct {
	Tokens *domain.TokenPair
	User   domain.SessionUser
}

// Login authenticates by email and password and opens a session.
//
// An unknown email and a wrong password both fail with ErrInvalidCredentials.
// An unverified account fails with ErrNotVerified whether or not the password
// is correct.
func (s *SessionService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.EmailVerified {
		return nil, domain.ErrNotVerified
	}

	if password == "" || !s.verifier.Verify(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	subject := user.ID.String()

	access, err := s.codec.Issue(subject, token.KindAccess, s.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Issue(subject, token.KindRefresh, s.config.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	if err := s.registry.Insert(ctx, refresh.Value); err != nil {
		return nil, err
	}

	return &LoginResult{
		Tokens: s.tokenPair(access, refresh.Value),
		User: domain.SessionUser{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.DisplayName(),
		},
	}, nil
}

// Refresh issues a new access token for an active refresh token.
// The refresh token is returned unchanged and stays valid until it expires or
// is logged out.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, domain.ErrUnauthorized
	}

	active, err := s.registry.Contains(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, domain.ErrUnauthorized
	}

	v, err := s.codec.VerifyKind(refreshToken, token.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(v.Subject); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, domain.ErrTokenMalformed)
	}

	access, err := s.codec.Issue(v.Subject, token.KindAccess, s.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	return s.tokenPair(access, refreshToken), nil
}

// Logout removes the refresh token from the registry. Unknown tokens are a
// no-op. Once Logout returns nil, Refresh with the same token fails.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.registry.Remove(ctx, refreshToken)
}

// ValidateAccessToken verifies an access token and returns its subject.
func (s *SessionService) ValidateAccessToken(raw string) (uuid.UUID, error) {
	v, err := s.codec.VerifyKind(raw, token.KindAccess)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	id, err := uuid.Parse(v.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, domain.ErrTokenMalformed)
	}
	return id, nil
}

func (s *SessionService) tokenPair(access token.Issued, refreshToken string) *domain.TokenPair {
	return &domain.TokenPair{
		AccessToken:  access.Value,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int(s.config.AccessTokenTTL.Seconds()),
		ExpiresAt:    access.ExpiresAt,
	}
}
