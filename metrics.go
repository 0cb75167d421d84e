package goCred

import internalmetrics "github.com/MrEthical07/goCred/internal/metrics"

// MetricID identifies a counter or histogram in the in-process metrics
// system.
type MetricID = internalmetrics.MetricID

const (
	// MetricCodeIssued counts codes stored and delivered.
	MetricCodeIssued = internalmetrics.MetricCodeIssued
	// MetricCodeIssueRateLimited counts issuances refused by the send limit.
	MetricCodeIssueRateLimited = internalmetrics.MetricCodeIssueRateLimited
	// MetricCodeDeliveryFailed counts transport failures.
	MetricCodeDeliveryFailed = internalmetrics.MetricCodeDeliveryFailed
	// MetricCodeVerified counts successful verifications.
	MetricCodeVerified = internalmetrics.MetricCodeVerified
	// MetricCodeInvalid counts mismatches that left attempts.
	MetricCodeInvalid = internalmetrics.MetricCodeInvalid
	// MetricCodeExpired counts verifications against an expired code.
	MetricCodeExpired = internalmetrics.MetricCodeExpired
	// MetricCodeNotFound counts verifications with no outstanding code.
	MetricCodeNotFound = internalmetrics.MetricCodeNotFound
	// MetricCodeAttemptsExhausted counts codes discarded after the last attempt.
	MetricCodeAttemptsExhausted = internalmetrics.MetricCodeAttemptsExhausted
	// MetricSessionCreated counts sessions opened by IssueSession.
	MetricSessionCreated = internalmetrics.MetricSessionCreated
	// MetricSessionRotated counts successful rotations.
	MetricSessionRotated = internalmetrics.MetricSessionRotated
	// MetricSessionRotateInvalid counts rotations refused as invalid.
	MetricSessionRotateInvalid = internalmetrics.MetricSessionRotateInvalid
	// MetricSessionRevoked counts successful revocations.
	MetricSessionRevoked = internalmetrics.MetricSessionRevoked
	// MetricSessionRevokeInvalid counts revocations of unknown tokens.
	MetricSessionRevokeInvalid = internalmetrics.MetricSessionRevokeInvalid
	// MetricRotateLatency is the rotation latency histogram.
	MetricRotateLatency = internalmetrics.MetricRotateLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a Metrics configured by cfg. When Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}

// RotateLatencyBuckets are the inclusive upper bounds of the rotation
// latency histogram buckets. A final unbounded bucket follows the last one.
var RotateLatencyBuckets = internalmetrics.RotateBucketBounds
