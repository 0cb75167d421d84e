// Package goCred is a credential lifecycle engine: one-time verification
// codes delivered over SMS or email, and rotating opaque refresh tokens that
// back a JWT API.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// goCred is the public surface. It exposes [Engine], [Builder], [Config], the
// collaborator interfaces [Transport] and [TokenGenerator], and error values.
// Flow orchestration, code storage, rate limiting and audit dispatch live
// under internal/. Persistence is reached through [ttlstore.Store] and
// [session.Repository] so any backend can be plugged in.
//
// The code half and the session half share no state: codes depend on the
// TTL store and a channel transport, sessions on a session repository and
// the token generator.
//
// # What this package must NOT do
//
//   - Log or persist plaintext codes or refresh tokens.
//   - Retry store or transport calls internally.
//   - Import the optional adapter packages (notify/*, jwt, session/postgres,
//     session/dynamo).
package goCred
