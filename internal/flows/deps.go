package flows

import (
	"context"
	"log/slog"
)

// AuditFunc emits one audit event. Metadata is built lazily.
type AuditFunc func(ctx context.Context, eventType string, success bool, fields AuditFields, err error, metadata func() map[string]string)

// AuditFields are the identity attributes attached to an audit event.
type AuditFields struct {
	Channel    string
	Identifier string
	OwnerID    string
	SessionID  string
}

func noopAudit(context.Context, string, bool, AuditFields, error, func() map[string]string) {}

func defaultLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// MaskIdentifier hides all but the last four characters of an identifier
// for logs.
func MaskIdentifier(identifier string) string {
	const visible = 4
	if len(identifier) <= visible {
		return "****"
	}
	return "****" + identifier[len(identifier)-visible:]
}
