package goCred

import (
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goCred/internal/audit"
	"github.com/MrEthical07/goCred/internal/flows"
	"github.com/MrEthical07/goCred/session"
)

// Engine issues and verifies one-time codes and rotates refresh sessions.
// It is safe for concurrent use once built.
type Engine struct {
	config   Config
	channels map[Channel]*channel
	sessions session.Repository
	tokens   TokenGenerator
	logger   *slog.Logger
	now      func() time.Time
	audit    *internalaudit.Dispatcher
	metrics  *Metrics

	sessionDeps flows.SessionDeps
}

// Close drains pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.config
}

func (e *Engine) metricInc(id int) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(MetricID(id))
}

func (e *Engine) channelMetricInc(ch Channel, id int) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.IncChannel(string(ch), MetricID(id))
}

func (e *Engine) observeRotate(d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(MetricRotateLatency, d)
}

func (e *Engine) channel(name Channel) (*channel, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ch, ok := e.channels[name]
	if !ok {
		return nil, ErrUnknownChannel
	}
	return ch, nil
}
