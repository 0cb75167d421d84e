package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID indexes a counter slot.
type MetricID uint16

const (
	MetricCodeIssued MetricID = iota
	MetricCodeIssueRateLimited
	MetricCodeDeliveryFailed
	MetricCodeVerified
	MetricCodeInvalid
	MetricCodeExpired
	MetricCodeNotFound
	MetricCodeAttemptsExhausted
	MetricSessionCreated
	MetricSessionRotated
	MetricSessionRotateInvalid
	MetricSessionRevoked
	MetricSessionRevokeInvalid
	MetricRotateLatency

	MetricIDCount
)

const (
	HistogramBucketCount = 8
	cacheLineSize        = 64

	// codeCounterCount is the number of code counters, which are also kept
	// per channel.
	codeCounterCount = int(MetricCodeAttemptsExhausted) + 1
)

// Channels are the label values of per-channel code counters, in slot order.
var Channels = [...]string{"sms", "email"}

type histogram struct {
	buckets  [HistogramBucketCount]uint64
	sumNanos uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config selects which recorders are live.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds counters and latency histograms. A nil or disabled Metrics
// ignores every write.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	channels      [len(Channels)][codeCounterCount]paddedCounter
	histograms    [MetricIDCount]histogram
}

// Snapshot is a point-in-time copy of all metrics. Histogram buckets are
// non-cumulative. Counters holds engine-wide totals; ByChannel splits the
// code counters by channel name.
type Snapshot struct {
	Counters      map[MetricID]uint64
	ByChannel     map[string]map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// IncChannel increments the code counter id both engine-wide and for
// channel. Unknown channels only count towards the total.
func (m *Metrics) IncChannel(channel string, id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
	if int(id) >= codeCounterCount {
		return
	}
	if slot := channelSlot(channel); slot >= 0 {
		atomic.AddUint64(&m.channels[slot][id].value, 1)
	}
}

// Observe records d in the histogram of id. Only latency IDs carry
// histograms.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !isHistogram(id) {
		return
	}
	if d < 0 {
		d = 0
	}
	h := &m.histograms[id]
	atomic.AddUint64(&h.buckets[bucketIndex(d)], 1)
	atomic.AddUint64(&h.sumNanos, uint64(d))
}

// ChannelValue returns the per-channel value of the code counter id.
func (m *Metrics) ChannelValue(channel string, id MetricID) uint64 {
	slot := channelSlot(channel)
	if m == nil || slot < 0 || int(id) >= codeCounterCount {
		return 0
	}
	return atomic.LoadUint64(&m.channels[slot][id].value)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:      map[MetricID]uint64{},
			ByChannel:     map[string]map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}

	s := Snapshot{
		Counters:      make(map[MetricID]uint64, int(MetricIDCount)),
		ByChannel:     make(map[string]map[MetricID]uint64, len(Channels)),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	for slot, name := range Channels {
		counts := make(map[MetricID]uint64, codeCounterCount)
		for id := 0; id < codeCounterCount; id++ {
			counts[MetricID(id)] = atomic.LoadUint64(&m.channels[slot][id].value)
		}
		s.ByChannel[name] = counts
	}

	if m.enableLatency {
		h := &m.histograms[MetricRotateLatency]
		buckets := make([]uint64, HistogramBucketCount)
		for i := 0; i < HistogramBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&h.buckets[i])
		}
		s.Histograms[MetricRotateLatency] = buckets
		s.HistogramSums[MetricRotateLatency] = time.Duration(atomic.LoadUint64(&h.sumNanos))
	}

	return s
}

func channelSlot(channel string) int {
	for i, name := range Channels {
		if name == channel {
			return i
		}
	}
	return -1
}

func isHistogram(id MetricID) bool {
	return id == MetricRotateLatency
}

// RotateBucketBounds are the inclusive upper bounds of the rotation latency
// buckets; the last bucket is unbounded.
var RotateBucketBounds = [HistogramBucketCount - 1]time.Duration{
	time.Millisecond,
	2500 * time.Microsecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
}

func bucketIndex(d time.Duration) int {
	for i, bound := range RotateBucketBounds {
		if d <= bound {
			return i
		}
	}
	return HistogramBucketCount - 1
}
