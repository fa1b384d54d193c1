package prometheus

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	hsAuth "github.com/MrEthical07/hsAuth"
	"github.com/MrEthical07/hsAuth/metrics/export/internaldefs"
)

const (
	contentType = "text/plain; version=0.0.4; charset=utf-8"

	auditDroppedName = "hsauth_audit_dropped_total"
	auditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

type metricsSource interface {
	MetricsSnapshot() hsAuth.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine on every scrape.
func NewPrometheusExporter(engine *hsAuth.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, p.Render())
	})
}

// Render returns the current exposition text. A source with metrics
// disabled renders as the empty string.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var buf bytes.Buffer
	for _, def := range internaldefs.CounterDefs {
		writeCounter(&buf, def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		writeHistogram(&buf, def, snap)
	}
	writeCounter(&buf, auditDroppedName, auditDroppedHelp, dropped)
	return buf.String()
}

func writeHeader(w io.Writer, name, help, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func writeCounter(w io.Writer, name, help string, value uint64) {
	writeHeader(w, name, help, "counter")
	fmt.Fprintf(w, "%s %d\n", name, value)
}

func writeHistogram(w io.Writer, def internaldefs.HistogramDef, snap hsAuth.MetricsSnapshot) {
	writeHeader(w, def.Name, def.Help, "histogram")

	cumulative := internaldefs.Cumulative(snap.Histograms[def.ID])
	for i, bound := range internaldefs.Bounds {
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", def.Name, bound.Le, cumulative[i])
	}
	fmt.Fprintf(w, "%s_sum %g\n", def.Name, snap.LatencySums[def.ID].Seconds())
	fmt.Fprintf(w, "%s_count %d\n", def.Name, cumulative[internaldefs.BucketCount-1])
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
