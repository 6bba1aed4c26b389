// Package registry tracks which refresh tokens are currently valid.
//
// Membership is the authority for refresh-token revocation: a token that
// verifies cryptographically but is absent here must be rejected. Tokens are
// stored by SHA-256 digest, never in plaintext.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Registry is the set of active refresh tokens.
type Registry interface {
	// Insert adds token to the active set. Inserting twice is a no-op.
	Insert(ctx context.Context, token string) error
	// Contains reports whether token is in the active set.
	Contains(ctx context.Context, token string) (bool, error)
	// Remove deletes token from the active set. Removing an absent token is a no-op.
	Remove(ctx context.Context, token string) error
}

// HashToken returns the hex-encoded SHA-256 digest used as the storage key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
