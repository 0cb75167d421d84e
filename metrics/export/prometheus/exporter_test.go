package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goCred "github.com/MrEthical07/goCred"
)

type fakeSource struct {
	snapshot goCred.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goCred.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                    { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters:   map[goCred.MetricID]uint64{},
			Histograms: map[goCred.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderSplitsCodeCountersByChannel(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{
				goCred.MetricCodeIssued:     7,
				goCred.MetricSessionRotated: 4,
			},
			ByChannel: map[string]map[goCred.MetricID]uint64{
				"sms":   {goCred.MetricCodeIssued: 5},
				"email": {goCred.MetricCodeIssued: 2},
			},
		},
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE gocred_code_issued_total counter\n",
		`gocred_code_issued_total{channel="sms"} 5`,
		`gocred_code_issued_total{channel="email"} 2`,
		`gocred_code_verified_total{channel="sms"} 0`,
		"gocred_session_rotated_total 4\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "gocred_code_issued_total 7") {
		t.Fatalf("code counters should only be exported per channel, got:\n%s", out)
	}
	if strings.Contains(out, `gocred_session_rotated_total{`) {
		t.Fatalf("session counters carry no channel label, got:\n%s", out)
	}
}

func TestRenderRotateHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{},
			Histograms: map[goCred.MetricID][]uint64{
				goCred.MetricRotateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			HistogramSums: map[goCred.MetricID]time.Duration{
				goCred.MetricRotateLatency: 1500 * time.Millisecond,
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE gocred_session_rotate_duration_seconds histogram\n",
		`gocred_session_rotate_duration_seconds_bucket{le="0.001"} 1`,
		`gocred_session_rotate_duration_seconds_bucket{le="0.0025"} 3`,
		`gocred_session_rotate_duration_seconds_bucket{le="0.1"} 28`,
		`gocred_session_rotate_duration_seconds_bucket{le="+Inf"} 36`,
		"gocred_session_rotate_duration_seconds_sum 1.5\n",
		"gocred_session_rotate_duration_seconds_count 36\n",
		"gocred_audit_dropped_total 2\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderFromEngine(t *testing.T) {
	cfg := goCred.DefaultConfig()
	cfg.Metrics.Enabled = true
	metrics := goCred.NewMetrics(cfg.Metrics)
	metrics.IncChannel(string(goCred.ChannelEmail), goCred.MetricCodeVerified)

	out := NewExporter(fakeSource{snapshot: metrics.Snapshot()}).Render()
	if !strings.Contains(out, `gocred_code_verified_total{channel="email"} 1`) {
		t.Fatalf("expected email verification in output, got:\n%s", out)
	}
	if !strings.Contains(out, `gocred_code_verified_total{channel="sms"} 0`) {
		t.Fatalf("expected zero sms series in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters:   map[goCred.MetricID]uint64{goCred.MetricCodeIssued: 1},
			Histograms: map[goCred.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporter(fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{
				goCred.MetricSessionCreated: 800,
				goCred.MetricSessionRotated: 2000,
			},
			ByChannel: map[string]map[goCred.MetricID]uint64{
				"sms":   {goCred.MetricCodeIssued: 700, goCred.MetricCodeVerified: 600, goCred.MetricCodeInvalid: 70},
				"email": {goCred.MetricCodeIssued: 300, goCred.MetricCodeVerified: 200, goCred.MetricCodeAttemptsExhausted: 3},
			},
			Histograms: map[goCred.MetricID][]uint64{
				goCred.MetricRotateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
