// Package postgres implements session.Repository and session.Rotator on
// PostgreSQL through a pgx connection pool.
//
// Rotation runs in one transaction: a conditional UPDATE revokes the old row
// only while it is unrevoked and unexpired, and the new row is inserted only
// if that UPDATE matched. Concurrent rotations of one token therefore have a
// single winner.
package postgres
