package otel

import (
	"context"
	"errors"
	"fmt"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads; *goCred.Engine satisfies it.
type Source interface {
	MetricsSnapshot() goCred.MetricsSnapshot
	AuditDropped() uint64
}

type counter struct {
	def        internaldefs.CounterDef
	instrument metric.Int64ObservableCounter
}

type histogram struct {
	def     internaldefs.HistogramDef
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
}

// Exporter observes engine metrics on every collection of its meter.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []counter
	histograms   []histogram
	auditDropped metric.Int64ObservableCounter
}

var (
	channelOpts = channelAttributes()
	bucketOpts  = bucketAttributes()
)

func channelAttributes() map[goCred.Channel]metric.ObserveOption {
	out := make(map[goCred.Channel]metric.ObserveOption, len(internaldefs.Channels))
	for _, ch := range internaldefs.Channels {
		out[ch] = metric.WithAttributes(attribute.String(internaldefs.ChannelLabel, string(ch)))
	}
	return out
}

func bucketAttributes() []metric.ObserveOption {
	out := make([]metric.ObserveOption, len(internaldefs.HistogramBounds))
	for i, le := range internaldefs.HistogramBounds {
		out[i] = metric.WithAttributes(attribute.String("le", le))
	}
	return out
}

// NewExporter registers one observable instrument per exported series
// family on meter. Per-channel code counters carry a channel attribute and
// histogram buckets an le attribute.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*3+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counter{def: def, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := histogram{def: def}
		var err error
		if h.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription(def.Help+" Cumulative count per le bucket.")); err != nil {
			return nil, fmt.Errorf("create bucket gauge %s: %w", def.Name, err)
		}
		if h.count, err = meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count.")); err != nil {
			return nil, fmt.Errorf("create count gauge %s: %w", def.Name, err)
		}
		if h.sum, err = meter.Float64ObservableGauge(def.Name+"_sum", metric.WithDescription(def.Help+" Sum of samples."), metric.WithUnit("s")); err != nil {
			return nil, fmt.Errorf("create sum gauge %s: %w", def.Name, err)
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, h.buckets, h.count, h.sum)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDropped.Name,
		metric.WithDescription(internaldefs.AuditDropped.Help),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		for _, sample := range internaldefs.CounterSamples(snapshot, c.def) {
			if sample.Channel == "" {
				observer.ObserveInt64(c.instrument, int64(sample.Value))
				continue
			}
			observer.ObserveInt64(c.instrument, int64(sample.Value), channelOpts[sample.Channel])
		}
	}

	for _, h := range e.histograms {
		sample := internaldefs.HistogramSamples(snapshot, h.def)
		for i, cumulative := range sample.Cumulative {
			observer.ObserveInt64(h.buckets, int64(cumulative), bucketOpts[i])
		}
		observer.ObserveInt64(h.count, int64(sample.Count))
		observer.ObserveFloat64(h.sum, sample.SumSeconds)
	}

	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
