package goCred

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimitExceeded is matched by every *RateLimitError.
	ErrRateLimitExceeded = errors.New("code issuance rate limit exceeded")
	// ErrDeliveryFailed is returned when the transport rejects a code. The
	// code stays stored and can still be verified.
	ErrDeliveryFailed = errors.New("code delivery failed")
	// ErrCodeNotFound is returned when no code is outstanding for the identifier.
	ErrCodeNotFound = errors.New("verification code not found")
	// ErrCodeExpired is returned when the outstanding code is past its expiry.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrInvalidCode is matched by every *InvalidCodeError.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrAttemptsExhausted is returned when the last allowed attempt fails.
	ErrAttemptsExhausted = errors.New("verification attempts exhausted")
	// ErrInvalidIdentifier is returned when an identifier fails normalization.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrUnknownChannel is returned for a channel that was not configured.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrVerificationUnavailable wraps code store failures.
	ErrVerificationUnavailable = errors.New("verification backend unavailable")

	// ErrInvalidRefreshToken covers unknown, revoked, expired and malformed
	// refresh tokens alike.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidOwner is returned when a session is requested without an owner.
	ErrInvalidOwner = errors.New("invalid session owner")
	// ErrSessionUnavailable wraps session store failures.
	ErrSessionUnavailable = errors.New("session backend unavailable")
	// ErrTokenIssueFailed is returned when the access token generator fails.
	ErrTokenIssueFailed = errors.New("access token issue failed")

	// ErrEngineNotReady is returned by methods of a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError reports a throttled code issuance.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %ds", ErrRateLimitExceeded, e.RetryAfterSeconds())
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// RetryAfterSeconds is RetryAfter rounded up to whole seconds.
func (e *RateLimitError) RetryAfterSeconds() int64 {
	secs := int64(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// InvalidCodeError reports a mismatched code with attempts left.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("%s: %d attempts remaining", ErrInvalidCode, e.Remaining)
}

func (e *InvalidCodeError) Is(target error) bool {
	return target == ErrInvalidCode
}

func deliveryError(cause error) error {
	return fmt.Errorf("%w: %v", ErrDeliveryFailed, cause)
}
