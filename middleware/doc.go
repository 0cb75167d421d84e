// Package middleware exposes HTTP adapters for goCred.
//
// # Handlers
//
//   - [ClientContext] copies the client IP and user agent into the request
//     context so issuance limits, sessions and audit events see them.
//   - [RequireAccess] verifies the bearer access token and injects its claims.
//
// This package translates HTTP semantics into engine and token manager calls.
// It does not issue codes, open sessions or touch a store.
package middleware
