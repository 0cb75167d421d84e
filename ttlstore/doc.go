// Package ttlstore defines the narrow key-value contract used by goCred for
// short-lived records: verification codes, verified marks and rate-limit
// counters.
//
// # Implementations
//
//   - [Redis]: go-redis backed store; counters are incremented and armed with
//     a TTL by a single Lua script so concurrent callers never observe a
//     counter without an expiry.
//   - [Memory]: process-local store over ttlcache for tests and
//     single-instance deployments.
//
// # What this package must NOT do
//
//   - Interpret stored values. Callers own their encodings.
//   - Extend a key's TTL on read or on increment after the key exists.
package ttlstore
