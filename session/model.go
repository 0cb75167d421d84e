package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// TokenHash is the SHA-256 digest of an opaque refresh token.
type TokenHash [32]byte

// HashToken digests a refresh token for storage and lookup.
func HashToken(token string) TokenHash {
	return sha256.Sum256([]byte(token))
}

func (h TokenHash) String() string {
	return hex.EncodeToString(h[:])
}

// Session is one refresh-token session.
type Session struct {
	ID        string
	TokenHash TokenHash
	OwnerID   string

	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool

	IPAddress string
	UserAgent string
}

// Active reports whether the session can still be rotated at now. A session
// is usable up to and including its expiry instant.
func (s *Session) Active(now time.Time) bool {
	return s != nil && !s.Revoked && !now.After(s.ExpiresAt)
}
