// Package stores provides short-lived record stores for verification codes on
// top of the ttlstore contract.
//
// # Design
//
// A code record is a versioned, binary-encoded value stored with a TTL equal to
// the code lifetime. Failed attempts rewrite the record with the remaining
// lifetime so an attempt never extends a code. A separate verified mark records
// a successful verification for a bounded window.
//
// # Architecture boundaries
//
// This package owns persistence of code records. It does NOT generate codes,
// enforce rate limits, or decide verification outcomes. Those responsibilities
// belong to the flow functions in internal/flows.
//
// # What this package must NOT do
//
//   - Import goCred or any sibling internal package.
//   - Log plaintext codes.
package stores
