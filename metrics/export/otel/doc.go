// Package otel publishes goCred metrics through an OpenTelemetry Meter.
//
// One callback reads [goCred.Engine.MetricsSnapshot] per collection. Code
// counters carry a channel attribute; the rotation histogram is reported as
// bucket, count and sum gauges, buckets keyed by an le attribute. The caller
// owns the MeterProvider and its exporters.
package otel
