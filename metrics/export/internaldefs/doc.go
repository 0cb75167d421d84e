// Package internaldefs maps goCred metric IDs to exported series: names,
// help strings, channel labels and rotation latency buckets. Both exporters
// render from [CounterSamples] and [HistogramSamples], so a series reads the
// same in Prometheus and OTel.
package internaldefs
