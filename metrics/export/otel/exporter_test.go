package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	goCred "github.com/MrEthical07/goCred"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goCred.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goCred.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goCred.MetricsSnapshot{
		Counters:      make(map[goCred.MetricID]uint64, len(f.snapshot.Counters)),
		ByChannel:     make(map[string]map[goCred.MetricID]uint64, len(f.snapshot.ByChannel)),
		Histograms:    make(map[goCred.MetricID][]uint64, len(f.snapshot.Histograms)),
		HistogramSums: make(map[goCred.MetricID]time.Duration, len(f.snapshot.HistogramSums)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for ch, counts := range f.snapshot.ByChannel {
		next := make(map[goCred.MetricID]uint64, len(counts))
		for k, v := range counts {
			next[k] = v
		}
		out.ByChannel[ch] = next
	}
	for k, v := range f.snapshot.HistogramSums {
		out.HistogramSums[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gocred-test")

	src := &fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{
				goCred.MetricCodeIssued: 3,
			},
			Histograms: map[goCred.MetricID][]uint64{
				goCred.MetricRotateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporter(meter, src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gocred-test")

	if _, err := NewExporter(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gocred-test")

	src := &fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{
				goCred.MetricCodeIssued: 1,
			},
			ByChannel: map[string]map[goCred.MetricID]uint64{
				"sms": {goCred.MetricCodeIssued: 1},
			},
			Histograms: map[goCred.MetricID][]uint64{
				goCred.MetricRotateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporter(meter, src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.ByChannel["sms"][goCred.MetricCodeIssued] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterReportsCounterValues(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gocred-test")

	src := &fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{
				goCred.MetricSessionRotated: 5,
			},
			Histograms: map[goCred.MetricID][]uint64{},
		},
	}

	exp, err := NewExporter(meter, src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "gocred_session_rotated_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 {
				t.Fatalf("unexpected data for %s: %#v", m.Name, m.Data)
			}
			if sum.DataPoints[0].Value != 5 {
				t.Fatalf("expected 5, got %d", sum.DataPoints[0].Value)
			}
			return
		}
	}
	t.Fatal("gocred_session_rotated_total not collected")
}

func collect(t *testing.T, src *fakeSource) map[string]metricdata.Metrics {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exp, err := NewExporter(provider.Meter("gocred-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	t.Cleanup(func() { _ = exp.Close() })

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestExporterLabelsCodeCountersByChannel(t *testing.T) {
	got := collect(t, &fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{goCred.MetricCodeInvalid: 4},
			ByChannel: map[string]map[goCred.MetricID]uint64{
				"sms":   {goCred.MetricCodeInvalid: 3},
				"email": {goCred.MetricCodeInvalid: 1},
			},
		},
	})

	m, ok := got["gocred_code_invalid_total"]
	if !ok {
		t.Fatal("gocred_code_invalid_total not collected")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 2 {
		t.Fatalf("expected one point per channel, got %#v", m.Data)
	}
	values := map[string]int64{}
	for _, dp := range sum.DataPoints {
		ch, ok := dp.Attributes.Value(attribute.Key("channel"))
		if !ok {
			t.Fatalf("point without channel attribute: %#v", dp)
		}
		values[ch.AsString()] = dp.Value
	}
	if values["sms"] != 3 || values["email"] != 1 {
		t.Fatalf("unexpected per-channel values %v", values)
	}
}

func TestExporterReportsRotateHistogram(t *testing.T) {
	got := collect(t, &fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{},
			Histograms: map[goCred.MetricID][]uint64{
				goCred.MetricRotateLatency: {2, 0, 1, 0, 0, 0, 0, 1},
			},
			HistogramSums: map[goCred.MetricID]time.Duration{
				goCred.MetricRotateLatency: 750 * time.Millisecond,
			},
		},
	})

	buckets, ok := got["gocred_session_rotate_duration_seconds_bucket"].Data.(metricdata.Gauge[int64])
	if !ok || len(buckets.DataPoints) != 8 {
		t.Fatalf("expected 8 bucket points, got %#v", got["gocred_session_rotate_duration_seconds_bucket"].Data)
	}
	byLE := map[string]int64{}
	for _, dp := range buckets.DataPoints {
		le, _ := dp.Attributes.Value(attribute.Key("le"))
		byLE[le.AsString()] = dp.Value
	}
	if byLE["0.001"] != 2 || byLE["0.005"] != 3 || byLE["+Inf"] != 4 {
		t.Fatalf("unexpected cumulative buckets %v", byLE)
	}

	count, ok := got["gocred_session_rotate_duration_seconds_count"].Data.(metricdata.Gauge[int64])
	if !ok || len(count.DataPoints) != 1 || count.DataPoints[0].Value != 4 {
		t.Fatalf("unexpected count %#v", got["gocred_session_rotate_duration_seconds_count"].Data)
	}
	total, ok := got["gocred_session_rotate_duration_seconds_sum"].Data.(metricdata.Gauge[float64])
	if !ok || len(total.DataPoints) != 1 || total.DataPoints[0].Value != 0.75 {
		t.Fatalf("unexpected sum %#v", got["gocred_session_rotate_duration_seconds_sum"].Data)
	}
}
