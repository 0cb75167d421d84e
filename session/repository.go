package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session matches a token hash.
	ErrNotFound = errors.New("session not found")
	// ErrRevoked is returned by Rotate when the old session was revoked first.
	ErrRevoked = errors.New("session revoked")
	// ErrExpired is returned by Rotate when the old session is past expiry.
	ErrExpired = errors.New("session expired")
	// ErrConflict is returned by Create when the token hash is already taken.
	ErrConflict = errors.New("session token conflict")
	// ErrCorrupt is returned when a stored session cannot be decoded.
	ErrCorrupt = errors.New("session corrupt")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("session backend unavailable")
)

// Repository is the minimal session persistence contract.
type Repository interface {
	// Create persists a new, unrevoked session.
	Create(ctx context.Context, s *Session) error
	// FindByToken returns the session for hash whether or not it is revoked
	// or expired, or ErrNotFound.
	FindByToken(ctx context.Context, hash TokenHash) (*Session, error)
	// Revoke marks the session revoked. Revoking a revoked session succeeds.
	Revoke(ctx context.Context, hash TokenHash) error
}

// Rotator is implemented by backends that can revoke oldHash and create next
// as one atomic step. Rotate fails with ErrNotFound, ErrRevoked or ErrExpired
// when the old session is no longer active at now, and writes nothing.
type Rotator interface {
	Rotate(ctx context.Context, oldHash TokenHash, next *Session, now time.Time) error
}
