package goCred

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/goCred/internal/audit"
)

const (
	auditEventCodeIssue     = "code_issue"
	auditEventCodeVerify    = "code_verify"
	auditEventSessionCreate = "session_create"
	auditEventSessionRotate = "session_rotate"
	auditEventSessionRevoke = "session_revoke"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON-encoded event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink writes events through a slog.Logger.
type LogSink = internalaudit.LogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}
