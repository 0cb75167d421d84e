// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunIssueCode, RunVerifyCode, RunIssueSession, RunRotate,
// RunRevoke) accepts a typed dependency struct and returns results without
// side-effects beyond those dependencies. This keeps the Engine type thin and
// lets tests drive every branch with in-memory dependencies.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the code store, session repository, rate
// limiter, token generator, transport, audit and metrics. They do NOT own any
// of these resources. Ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goCred (to avoid import cycles).
//   - Log codes or refresh tokens.
package flows
