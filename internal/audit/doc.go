// Package audit relays engine events (code_issue, code_verify, session_*)
// to a caller-chosen Sink without blocking the request path.
//
// A [Dispatcher] buffers events for one background worker and either drops
// or blocks when the buffer is full, counting drops. Sinks: no-op, channel,
// JSON lines and slog. Identifiers arrive already masked; codes and tokens
// never enter an [Event].
package audit
