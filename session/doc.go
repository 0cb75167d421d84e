// Package session provides refresh-token session persistence for goCred.
//
// # Model
//
// A [Session] is keyed by the SHA-256 of its opaque refresh token; the
// plaintext token is never stored. Revocation is permanent and records are
// kept after expiry so a replayed token is recognized as stale rather than
// unknown.
//
// # Backends
//
// [Repository] is the minimal contract. Backends that can swap an old session
// for a new one atomically also implement [Rotator]:
//
//   - [Store]: Redis, compact binary encoding, Lua compare-and-swap rotation.
//   - session/postgres: pgx, rotation inside one transaction.
//   - session/dynamo: DynamoDB, rotation via TransactWriteItems.
//
// # Binary encoding
//
// Redis values use a fixed-offset header (version, revoked flag, created and
// expiry timestamps) followed by variable fields, so the Lua scripts can check
// and flip the revoked flag without a full decode.
//
// # What this package must NOT do
//
//   - Import goCred (no upward imports).
//   - Mint tokens or make authentication decisions.
//   - Store plaintext refresh tokens.
package session
