package goCred

import (
	"context"

	"github.com/MrEthical07/goCred/internal"
	"github.com/MrEthical07/goCred/internal/flows"
	"github.com/MrEthical07/goCred/session"
	"github.com/google/uuid"
)

// IssueSession opens a refresh session for ownerID, typically right after a
// successful code verification, and returns its first token pair.
//
// Errors: ErrInvalidOwner, ErrTokenIssueFailed, ErrSessionUnavailable,
// ErrEngineNotReady when no session store or token generator is configured.
func (e *Engine) IssueSession(ctx context.Context, ownerID string, device DeviceMeta) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	result, err := flows.RunIssueSession(ctx, ownerID, e.device(ctx, device), e.sessionDeps)
	if err != nil {
		return TokenPair{}, err
	}
	return tokenPair(result), nil
}

// Rotate exchanges an active refresh token for a new pair and revokes the
// presented one. Unknown, revoked, expired and malformed tokens all fail with
// ErrInvalidRefreshToken.
//
// With a session store that implements session.Rotator (all built-in stores
// do) concurrent rotations of one token have exactly one winner.
func (e *Engine) Rotate(ctx context.Context, refreshToken string, device DeviceMeta) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	result, err := flows.RunRotate(ctx, refreshToken, e.device(ctx, device), e.sessionDeps)
	if err != nil {
		return TokenPair{}, err
	}
	return tokenPair(result), nil
}

// Revoke ends the session behind refreshToken. Revoking an already revoked
// session succeeds; an unknown token fails with ErrInvalidRefreshToken.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunRevoke(ctx, refreshToken, e.sessionDeps)
}

func (e *Engine) device(ctx context.Context, d DeviceMeta) flows.Device {
	out := flows.Device{IPAddress: d.IPAddress, UserAgent: d.UserAgent}
	if out.IPAddress == "" {
		out.IPAddress = clientIPFromContext(ctx)
	}
	if out.UserAgent == "" {
		out.UserAgent = userAgentFromContext(ctx)
	}
	return out
}

func (e *Engine) newSessionDeps() flows.SessionDeps {
	deps := flows.SessionDeps{
		RefreshTTL: e.config.Session.RefreshTTL,

		Now:             e.now,
		NewSessionID:    newSessionID,
		NewRefreshToken: internal.NewRefreshToken,
		ValidRefreshToken: func(token string) bool {
			_, err := internal.DecodeRefreshToken(token)
			return err == nil
		},
		HashToken: session.HashToken,

		Store: e.sessions,

		MetricInc:     e.metricInc,
		ObserveRotate: e.observeRotate,
		EmitAudit:     e.emitAudit,
		Logger:        e.logger,

		Metrics: flows.SessionMetrics{
			Created:       int(MetricSessionCreated),
			Rotated:       int(MetricSessionRotated),
			RotateInvalid: int(MetricSessionRotateInvalid),
			Revoked:       int(MetricSessionRevoked),
			RevokeInvalid: int(MetricSessionRevokeInvalid),
		},
		Events: flows.SessionEvents{
			Create: auditEventSessionCreate,
			Rotate: auditEventSessionRotate,
			Revoke: auditEventSessionRevoke,
		},
		Errors: flows.SessionErrors{
			EngineNotReady:      ErrEngineNotReady,
			InvalidOwner:        ErrInvalidOwner,
			InvalidRefreshToken: ErrInvalidRefreshToken,
			Unavailable:         ErrSessionUnavailable,
			TokenIssueFailed:    ErrTokenIssueFailed,
		},
	}

	if e.tokens != nil {
		tokens := e.tokens
		deps.IssueAccessToken = func(ctx context.Context, ownerID, sessionID string) (string, error) {
			return tokens.GenerateAccessToken(ctx, AccessSubject{OwnerID: ownerID, SessionID: sessionID})
		}
	}

	return deps
}

func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func tokenPair(r flows.SessionResult) TokenPair {
	return TokenPair{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		SessionID:    r.SessionID,
		OwnerID:      r.OwnerID,
		ExpiresAt:    r.ExpiresAt,
	}
}
