package flows

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goCred/session"
)

// Device carries client metadata recorded on a new session.
type Device struct {
	IPAddress string
	UserAgent string
}

// SessionResult is the credential pair handed back to the caller.
type SessionResult struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	OwnerID      string
	ExpiresAt    time.Time
}

type SessionMetrics struct {
	Created       int
	Rotated       int
	RotateInvalid int
	Revoked       int
	RevokeInvalid int
}

type SessionEvents struct {
	Create string
	Rotate string
	Revoke string
}

type SessionErrors struct {
	EngineNotReady      error
	InvalidOwner        error
	InvalidRefreshToken error
	Unavailable         error
	TokenIssueFailed    error
}

// SessionDeps captures session flow dependencies.
type SessionDeps struct {
	RefreshTTL time.Duration

	Now               func() time.Time
	NewSessionID      func() (string, error)
	NewRefreshToken   func() (string, error)
	ValidRefreshToken func(string) bool
	HashToken         func(string) session.TokenHash

	Store            session.Repository
	IssueAccessToken func(ctx context.Context, ownerID, sessionID string) (string, error)

	MetricInc     func(int)
	ObserveRotate func(time.Duration)
	EmitAudit     AuditFunc
	Logger        *slog.Logger

	Metrics SessionMetrics
	Events  SessionEvents
	Errors  SessionErrors
}

// RunIssueSession creates a session for ownerID and mints its first token
// pair.
func RunIssueSession(ctx context.Context, ownerID string, device Device, deps SessionDeps) (SessionResult, error) {
	normalizeSessionDeps(&deps)
	if !deps.canIssue() {
		return SessionResult{}, deps.Errors.EngineNotReady
	}
	if ownerID == "" {
		return SessionResult{}, deps.Errors.InvalidOwner
	}

	next, refresh, err := prepareSession(ownerID, device, deps)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "session material generation failed", slog.Any("error", err))
		return SessionResult{}, deps.Errors.Unavailable
	}
	fields := AuditFields{OwnerID: ownerID, SessionID: next.ID}

	access, err := deps.IssueAccessToken(ctx, ownerID, next.ID)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "access token generation failed",
			slog.String("owner_id", ownerID),
			slog.Any("error", err),
		)
		deps.EmitAudit(ctx, deps.Events.Create, false, fields, deps.Errors.TokenIssueFailed, nil)
		return SessionResult{}, deps.Errors.TokenIssueFailed
	}

	if err := deps.Store.Create(ctx, next); err != nil {
		deps.Logger.WarnContext(ctx, "session create failed",
			slog.String("owner_id", ownerID),
			slog.Any("error", err),
		)
		deps.EmitAudit(ctx, deps.Events.Create, false, fields, deps.Errors.Unavailable, nil)
		return SessionResult{}, deps.Errors.Unavailable
	}

	deps.MetricInc(deps.Metrics.Created)
	deps.EmitAudit(ctx, deps.Events.Create, true, fields, nil, nil)
	deps.Logger.InfoContext(ctx, "session created",
		slog.String("owner_id", ownerID),
		slog.String("session_id", next.ID),
	)
	return resultFor(next, access, refresh), nil
}

// RunRotate exchanges an active refresh token for a new pair. The presented
// session is revoked and replaced; any inactive or unknown token yields the
// same InvalidRefreshToken error.
//
// New material, including the access token, is minted before any write so a
// generator failure leaves the presented session untouched.
func RunRotate(ctx context.Context, refreshToken string, device Device, deps SessionDeps) (SessionResult, error) {
	normalizeSessionDeps(&deps)
	if !deps.canIssue() {
		return SessionResult{}, deps.Errors.EngineNotReady
	}
	start := time.Now()
	defer func() { deps.ObserveRotate(time.Since(start)) }()

	invalid := func(fields AuditFields, reason string) (SessionResult, error) {
		deps.MetricInc(deps.Metrics.RotateInvalid)
		deps.EmitAudit(ctx, deps.Events.Rotate, false, fields, deps.Errors.InvalidRefreshToken, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		deps.Logger.InfoContext(ctx, "refresh rejected",
			slog.String("reason", reason),
			slog.String("session_id", fields.SessionID),
		)
		return SessionResult{}, deps.Errors.InvalidRefreshToken
	}
	unavailable := func(fields AuditFields, msg string, err error) (SessionResult, error) {
		deps.Logger.WarnContext(ctx, msg,
			slog.String("session_id", fields.SessionID),
			slog.Any("error", err),
		)
		deps.EmitAudit(ctx, deps.Events.Rotate, false, fields, deps.Errors.Unavailable, nil)
		return SessionResult{}, deps.Errors.Unavailable
	}

	if !deps.ValidRefreshToken(refreshToken) {
		return invalid(AuditFields{}, "malformed")
	}
	oldHash := deps.HashToken(refreshToken)

	current, err := deps.Store.FindByToken(ctx, oldHash)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return invalid(AuditFields{}, "not_found")
	case err != nil:
		return unavailable(AuditFields{}, "session lookup failed", err)
	}

	fields := AuditFields{OwnerID: current.OwnerID, SessionID: current.ID}
	now := deps.Now()
	if current.Revoked {
		return invalid(fields, "revoked")
	}
	if !current.Active(now) {
		return invalid(fields, "expired")
	}

	next, refresh, err := prepareSession(current.OwnerID, device, deps)
	if err != nil {
		return unavailable(fields, "session material generation failed", err)
	}
	access, err := deps.IssueAccessToken(ctx, current.OwnerID, next.ID)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "access token generation failed",
			slog.String("session_id", current.ID),
			slog.Any("error", err),
		)
		deps.EmitAudit(ctx, deps.Events.Rotate, false, fields, deps.Errors.TokenIssueFailed, nil)
		return SessionResult{}, deps.Errors.TokenIssueFailed
	}

	if rotator, ok := deps.Store.(session.Rotator); ok {
		err := rotator.Rotate(ctx, oldHash, next, now)
		switch {
		case errors.Is(err, session.ErrNotFound):
			return invalid(fields, "not_found")
		case errors.Is(err, session.ErrRevoked):
			return invalid(fields, "revoked")
		case errors.Is(err, session.ErrExpired):
			return invalid(fields, "expired")
		case err != nil:
			return unavailable(fields, "session rotate failed", err)
		}
	} else {
		if err := deps.Store.Revoke(ctx, oldHash); err != nil {
			return unavailable(fields, "session revoke failed", err)
		}
		if err := deps.Store.Create(ctx, next); err != nil {
			return unavailable(fields, "session create failed", err)
		}
	}

	deps.MetricInc(deps.Metrics.Rotated)
	deps.EmitAudit(ctx, deps.Events.Rotate, true, fields, nil, func() map[string]string {
		return map[string]string{"next_session_id": next.ID}
	})
	deps.Logger.InfoContext(ctx, "session rotated",
		slog.String("owner_id", current.OwnerID),
		slog.String("session_id", current.ID),
		slog.String("next_session_id", next.ID),
	)
	return resultFor(next, access, refresh), nil
}

// RunRevoke marks the session behind refreshToken revoked. Revoking an
// already revoked session succeeds without a write.
func RunRevoke(ctx context.Context, refreshToken string, deps SessionDeps) error {
	normalizeSessionDeps(&deps)
	if deps.Store == nil {
		return deps.Errors.EngineNotReady
	}

	invalid := func(reason string) error {
		deps.MetricInc(deps.Metrics.RevokeInvalid)
		deps.EmitAudit(ctx, deps.Events.Revoke, false, AuditFields{}, deps.Errors.InvalidRefreshToken, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return deps.Errors.InvalidRefreshToken
	}

	if !deps.ValidRefreshToken(refreshToken) {
		return invalid("malformed")
	}
	hash := deps.HashToken(refreshToken)

	current, err := deps.Store.FindByToken(ctx, hash)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return invalid("not_found")
	case err != nil:
		deps.Logger.WarnContext(ctx, "session lookup failed", slog.Any("error", err))
		deps.EmitAudit(ctx, deps.Events.Revoke, false, AuditFields{}, deps.Errors.Unavailable, nil)
		return deps.Errors.Unavailable
	}

	fields := AuditFields{OwnerID: current.OwnerID, SessionID: current.ID}
	if !current.Revoked {
		if err := deps.Store.Revoke(ctx, hash); err != nil && !errors.Is(err, session.ErrNotFound) {
			deps.Logger.WarnContext(ctx, "session revoke failed",
				slog.String("session_id", current.ID),
				slog.Any("error", err),
			)
			deps.EmitAudit(ctx, deps.Events.Revoke, false, fields, deps.Errors.Unavailable, nil)
			return deps.Errors.Unavailable
		}
	}

	deps.MetricInc(deps.Metrics.Revoked)
	deps.EmitAudit(ctx, deps.Events.Revoke, true, fields, nil, func() map[string]string {
		return map[string]string{"already_revoked": boolString(current.Revoked)}
	})
	deps.Logger.InfoContext(ctx, "session revoked",
		slog.String("owner_id", current.OwnerID),
		slog.String("session_id", current.ID),
	)
	return nil
}

func (d SessionDeps) canIssue() bool {
	return d.Store != nil && d.IssueAccessToken != nil && d.NewSessionID != nil && d.NewRefreshToken != nil
}

func prepareSession(ownerID string, device Device, deps SessionDeps) (*session.Session, string, error) {
	id, err := deps.NewSessionID()
	if err != nil {
		return nil, "", err
	}
	refresh, err := deps.NewRefreshToken()
	if err != nil {
		return nil, "", err
	}
	now := deps.Now()
	return &session.Session{
		ID:        id,
		TokenHash: deps.HashToken(refresh),
		OwnerID:   ownerID,
		CreatedAt: now,
		ExpiresAt: now.Add(deps.RefreshTTL),
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
	}, refresh, nil
}

func resultFor(s *session.Session, access, refresh string) SessionResult {
	return SessionResult{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    s.ID,
		OwnerID:      s.OwnerID,
		ExpiresAt:    s.ExpiresAt,
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func normalizeSessionDeps(deps *SessionDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.HashToken == nil {
		deps.HashToken = session.HashToken
	}
	if deps.ValidRefreshToken == nil {
		deps.ValidRefreshToken = func(s string) bool { return s != "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveRotate == nil {
		deps.ObserveRotate = func(time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	deps.Logger = defaultLogger(deps.Logger)
	if deps.Errors.EngineNotReady == nil {
		deps.Errors.EngineNotReady = errors.New("engine not ready")
	}
	if deps.Errors.Unavailable == nil {
		deps.Errors.Unavailable = deps.Errors.EngineNotReady
	}
	if deps.Errors.InvalidRefreshToken == nil {
		deps.Errors.InvalidRefreshToken = deps.Errors.EngineNotReady
	}
	if deps.Errors.TokenIssueFailed == nil {
		deps.Errors.TokenIssueFailed = deps.Errors.Unavailable
	}
	if deps.Errors.InvalidOwner == nil {
		deps.Errors.InvalidOwner = deps.Errors.EngineNotReady
	}
}
