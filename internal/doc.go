// Package internal contains helper utilities that are intentionally private to goCred,
// including secure random generation for verification codes and refresh tokens.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - limiters: domain-specific rate limiters (code issuance)
//   - rate: fixed-window counter primitive over ttlstore
//   - stores: verification code records over ttlstore
//
// # What this package must NOT do
//
//   - Export types that appear in the public goCred API.
//   - Be imported by any package outside the goCred module.
package internal
