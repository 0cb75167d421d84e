package goCred

import (
	"context"
	"time"
)

// Transport delivers a verification code to an identifier. Implementations
// must not log the code.
type Transport interface {
	SendCode(ctx context.Context, identifier, code string) error
}

// TransportFunc adapts a plain function to [Transport].
type TransportFunc func(ctx context.Context, identifier, code string) error

func (f TransportFunc) SendCode(ctx context.Context, identifier, code string) error {
	return f(ctx, identifier, code)
}

// AccessSubject identifies whom an access token is minted for.
type AccessSubject struct {
	OwnerID   string
	SessionID string
}

// TokenGenerator mints the short-lived access token paired with each
// refresh token. The jwt package ships an implementation.
type TokenGenerator interface {
	GenerateAccessToken(ctx context.Context, subject AccessSubject) (string, error)
}

// DeviceMeta is client metadata recorded on a session. Empty fields fall
// back to values attached with [WithClientIP] and [WithUserAgent].
type DeviceMeta struct {
	IPAddress string
	UserAgent string
}

// TokenPair is returned by [Engine.IssueSession] and [Engine.Rotate].
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	OwnerID      string
	// ExpiresAt is when the refresh token stops being accepted.
	ExpiresAt time.Time
}
