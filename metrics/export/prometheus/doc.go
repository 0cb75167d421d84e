// Package prometheus serves goCred metrics in the Prometheus text format.
//
// Mount [Exporter.Handler] on your metrics route. Code counters are split by
// a channel label (sms, email); session counters are engine-wide. Rotation
// latency is exported as the gocred_session_rotate_duration_seconds
// histogram. Nothing is registered globally.
package prometheus
