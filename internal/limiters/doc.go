// Package limiters provides domain-specific rate limiters built on top of the
// internal/rate primitives.
//
// # Limiters
//
//   - [CodeIssueLimiter]: per-identifier (and optional per-IP) throttle for
//     verification code issuance, one instance per channel.
//
// All limiters are nil-safe: a nil receiver never limits.
//
// # Architecture boundaries
//
// Each limiter owns its own key namespace. Policy thresholds come from Config
// structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import goCred or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
