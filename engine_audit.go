package goCred

import (
	"context"
	"errors"

	"github.com/MrEthical07/goCred/internal/flows"
	"github.com/google/uuid"
)

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrDeliveryFailed    AuditErrorCode = "delivery_failed"
	auditErrCodeNotFound      AuditErrorCode = "code_not_found"
	auditErrCodeExpired       AuditErrorCode = "code_expired"
	auditErrInvalidCode       AuditErrorCode = "invalid_code"
	auditErrAttemptsExhausted AuditErrorCode = "attempts_exhausted"
	auditErrInvalidIdentifier AuditErrorCode = "invalid_identifier"
	auditErrInvalidToken      AuditErrorCode = "invalid_refresh_token"
	auditErrInvalidOwner      AuditErrorCode = "invalid_owner"
	auditErrTokenIssue        AuditErrorCode = "token_issue_failed"
	auditErrUnavailable       AuditErrorCode = "unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	fields flows.AuditFields,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Channel:   fields.Channel,
		OwnerID:   fields.OwnerID,
		SessionID: fields.SessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if fields.Identifier != "" {
		event.Identifier = flows.MaskIdentifier(fields.Identifier)
	}
	if id, idErr := uuid.NewV7(); idErr == nil {
		event.ID = id.String()
	}
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return auditErrRateLimited
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrCodeNotFound):
		return auditErrCodeNotFound
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrAttemptsExhausted):
		return auditErrAttemptsExhausted
	case errors.Is(err, ErrInvalidIdentifier):
		return auditErrInvalidIdentifier
	case errors.Is(err, ErrInvalidRefreshToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrInvalidOwner):
		return auditErrInvalidOwner
	case errors.Is(err, ErrTokenIssueFailed):
		return auditErrTokenIssue
	case errors.Is(err, ErrVerificationUnavailable),
		errors.Is(err, ErrSessionUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
