// Package rate provides the fixed-window counter primitive used by goCred
// limiters.
//
// # Window semantics
//
// One atomic IncrementWithTTL per check. The window starts at the first hit
// and is never extended by later hits. A request is limited when the counter
// exceeds the configured maximum.
//
// # Failure policy
//
// Store errors fail open: the request is allowed and a warning is logged.
// Issuance must not stall because the counter backend is down.
//
// # What this package must NOT do
//
//   - Implement domain-specific key layouts (those live in internal/limiters).
//   - Be imported outside the goCred module.
package rate
