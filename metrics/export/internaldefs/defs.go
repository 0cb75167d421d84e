package internaldefs

import (
	"strconv"

	goCred "github.com/MrEthical07/goCred"
)

// ChannelLabel keys the per-channel series of code counters.
const ChannelLabel = "channel"

// CounterDef maps a counter ID to its exported name. PerChannel counters are
// published as one series per channel.
type CounterDef struct {
	ID         goCred.MetricID
	Name       string
	Help       string
	PerChannel bool
}

// HistogramDef maps a histogram ID to its exported name.
type HistogramDef struct {
	ID   goCred.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goCred.MetricCodeIssued, Name: "gocred_code_issued_total", Help: "Verification codes stored and delivered.", PerChannel: true},
	{ID: goCred.MetricCodeIssueRateLimited, Name: "gocred_code_issue_rate_limited_total", Help: "Code issuances refused by the send limit.", PerChannel: true},
	{ID: goCred.MetricCodeDeliveryFailed, Name: "gocred_code_delivery_failed_total", Help: "Codes the transport failed to deliver.", PerChannel: true},
	{ID: goCred.MetricCodeVerified, Name: "gocred_code_verified_total", Help: "Successful code verifications.", PerChannel: true},
	{ID: goCred.MetricCodeInvalid, Name: "gocred_code_invalid_total", Help: "Mismatched codes with attempts remaining.", PerChannel: true},
	{ID: goCred.MetricCodeExpired, Name: "gocred_code_expired_total", Help: "Verifications against an expired code.", PerChannel: true},
	{ID: goCred.MetricCodeNotFound, Name: "gocred_code_not_found_total", Help: "Verifications with no outstanding code.", PerChannel: true},
	{ID: goCred.MetricCodeAttemptsExhausted, Name: "gocred_code_attempts_exhausted_total", Help: "Codes discarded after the last failed attempt.", PerChannel: true},
	{ID: goCred.MetricSessionCreated, Name: "gocred_session_created_total", Help: "Sessions opened."},
	{ID: goCred.MetricSessionRotated, Name: "gocred_session_rotated_total", Help: "Successful refresh token rotations."},
	{ID: goCred.MetricSessionRotateInvalid, Name: "gocred_session_rotate_invalid_total", Help: "Rotations refused for an invalid refresh token."},
	{ID: goCred.MetricSessionRevoked, Name: "gocred_session_revoked_total", Help: "Successful session revocations."},
	{ID: goCred.MetricSessionRevokeInvalid, Name: "gocred_session_revoke_invalid_total", Help: "Revocations of unknown refresh tokens."},
}

// AuditDropped is read from the engine rather than the snapshot.
var AuditDropped = CounterDef{
	Name: "gocred_audit_dropped_total",
	Help: "Audit events dropped because the dispatcher buffer was full.",
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goCred.MetricRotateLatency, Name: "gocred_session_rotate_duration_seconds", Help: "Refresh token rotation latency, store round trip and token mint included."},
}

// Channels are the label values of per-channel series, in render order.
var Channels = []goCred.Channel{goCred.ChannelSMS, goCred.ChannelEmail}

// HistogramBounds are the le values of the rotation histogram buckets.
var HistogramBounds = histogramBounds()

func histogramBounds() [len(goCred.RotateLatencyBuckets) + 1]string {
	var out [len(goCred.RotateLatencyBuckets) + 1]string
	for i, bound := range goCred.RotateLatencyBuckets {
		out[i] = strconv.FormatFloat(bound.Seconds(), 'g', -1, 64)
	}
	out[len(out)-1] = "+Inf"
	return out
}

// CounterSample is one exported series of a counter. Channel is empty for
// engine-wide series.
type CounterSample struct {
	Channel goCred.Channel
	Value   uint64
}

// CounterSamples returns the series of def in snapshot.
func CounterSamples(snapshot goCred.MetricsSnapshot, def CounterDef) []CounterSample {
	if !def.PerChannel {
		return []CounterSample{{Value: snapshot.Counters[def.ID]}}
	}
	out := make([]CounterSample, 0, len(Channels))
	for _, ch := range Channels {
		out = append(out, CounterSample{Channel: ch, Value: snapshot.ByChannel[string(ch)][def.ID]})
	}
	return out
}

// HistogramSample is a histogram in exposition form.
type HistogramSample struct {
	Cumulative [len(HistogramBounds)]uint64
	Count      uint64
	SumSeconds float64
}

// HistogramSamples converts the non-cumulative buckets of def in snapshot.
func HistogramSamples(snapshot goCred.MetricsSnapshot, def HistogramDef) HistogramSample {
	var out HistogramSample
	var running uint64
	raw := snapshot.Histograms[def.ID]
	for i := range out.Cumulative {
		if i < len(raw) {
			running += raw[i]
		}
		out.Cumulative[i] = running
	}
	out.Count = running
	out.SumSeconds = snapshot.HistogramSums[def.ID].Seconds()
	return out
}
