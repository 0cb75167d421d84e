// Package metrics holds the engine's in-process counters (codes issued,
// verified, refused; sessions created, rotated, revoked) and the rotate
// latency histogram.
//
// Writes are single atomic adds on padded slots; Snapshot copies them for
// exporters under metrics/export. The package does no I/O and keeps no
// global registry.
package metrics
