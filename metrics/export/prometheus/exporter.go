package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/metrics/export/internaldefs"
)

// Source is what the exporter reads; *goCred.Engine satisfies it.
type Source interface {
	MetricsSnapshot() goCred.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in the Prometheus text exposition format.
type Exporter struct {
	source Source
}

// NewExporter returns an Exporter reading from source.
func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics, or "" while metrics are disabled.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		writeHeader(&b, def.Name, def.Help, "counter")
		for _, sample := range internaldefs.CounterSamples(snapshot, def) {
			label := ""
			if sample.Channel != "" {
				label = internaldefs.ChannelLabel
			}
			writeSeries(&b, def.Name, label, string(sample.Channel), strconv.FormatUint(sample.Value, 10))
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		h := internaldefs.HistogramSamples(snapshot, def)
		writeHeader(&b, def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			writeSeries(&b, def.Name+"_bucket", "le", le, strconv.FormatUint(h.Cumulative[i], 10))
		}
		writeSeries(&b, def.Name+"_sum", "", "", strconv.FormatFloat(h.SumSeconds, 'g', -1, 64))
		writeSeries(&b, def.Name+"_count", "", "", strconv.FormatUint(h.Count, 10))
	}

	writeHeader(&b, internaldefs.AuditDropped.Name, internaldefs.AuditDropped.Help, "counter")
	writeSeries(&b, internaldefs.AuditDropped.Name, "", "", strconv.FormatUint(dropped, 10))

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

// writeSeries writes one sample line; label is omitted when empty.
func writeSeries(b *strings.Builder, name, label, value, sample string) {
	b.WriteString(name)
	if label != "" {
		b.WriteByte('{')
		b.WriteString(label)
		b.WriteString(`="`)
		b.WriteString(value)
		b.WriteString(`"}`)
	}
	b.WriteByte(' ')
	b.WriteString(sample)
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
