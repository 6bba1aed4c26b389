// Package token signs and verifies the compact bearer tokens used for access,
// refresh and email verification. Verification is purely cryptographic;
// revocation is the caller's concern.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/myauth/pkg/domain"
)

// MinSecretLength is the minimum accepted length of the signing secret.
const MinSecretLength = 32

// Kind discriminates what a token may be used for.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindVerify  Kind = "verify"
)

// Config holds codec configuration.
type Config struct {
	Secret []byte
	Issuer string
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// Claims are the JWT claims carried by every token.
type Claims struct {
	jwt.RegisteredClaims
	Kind Kind `json:"kind"`
}

// Issued is a freshly signed token and its expiry.
type Issued struct {
	Value     string
	ExpiresAt time.Time
}

// Verified is the decoded content of a valid token.
type Verified struct {
	Subject   string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies tokens with a process-wide HMAC secret.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewCodec creates a codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token: secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}, nil
}

// Issue signs a token for subject with the given kind, valid for ttl from now.
func (c *Codec) Issue(subject string, kind Kind, ttl time.Duration) (Issued, error) {
	if subject == "" {
		return Issued{}, errors.New("token: subject is required")
	}
	if ttl <= 0 {
		return Issued{}, errors.New("token: ttl must be positive")
	}

	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// jti keeps two tokens issued in the same second distinct
			ID: uuid.NewString(),
		},
		Kind: kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("token: sign: %w", err)
	}

	// exp is encoded in whole seconds
	return Issued{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks signature, expiry and, when the codec has one, the issuer.
// It fails with domain.ErrTokenMalformed, domain.ErrTokenSignatureInvalid or
// domain.ErrTokenExpired; a foreign issuer reports ErrTokenMalformed.
func (c *Codec) Verify(raw string) (*Verified, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" || claims.Kind == "" {
		return nil, domain.ErrTokenMalformed
	}

	v := &Verified{
		Subject:   claims.Subject,
		Kind:      claims.Kind,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		v.IssuedAt = claims.IssuedAt.Time
	}
	return v, nil
}

// VerifyKind verifies raw and additionally requires the given kind.
func (c *Codec) VerifyKind(raw string, kind Kind) (*Verified, error) {
	v, err := c.Verify(raw)
	if err != nil {
		return nil, err
	}
	if v.Kind != kind {
		return nil, domain.ErrTokenWrongKind
	}
	return v, nil
}

// classify maps jwt parse errors onto the codec's error set.
// The parser checks the signature before any time claim, so an expired token
// only reports ErrTokenExpired when its signature is valid.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return domain.ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	default:
		return domain.ErrTokenMalformed
	}
}
