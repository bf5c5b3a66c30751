package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() portalauth.MetricsSnapshot
	AuditDropped() uint64
}

type histogramDesc struct {
	id   portalauth.MetricID
	desc *prometheus.Desc
}

// Collector turns engine snapshots into Prometheus metrics.
type Collector struct {
	source       metricsSource
	counters     map[portalauth.MetricID]*prometheus.Desc
	histograms   []histogramDesc
	auditDropped *prometheus.Desc
}

// NewCollector reads from engine. Any value with MetricsSnapshot and
// AuditDropped works, which keeps the collector testable.
func NewCollector(source metricsSource) *Collector {
	c := &Collector{
		source:   source,
		counters: make(map[portalauth.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		auditDropped: prometheus.NewDesc(
			"portalauth_audit_dropped_total",
			"Audit events dropped by dispatcher backpressure.",
			nil, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range internaldefs.CounterDefs {
		ch <- c.counters[def.ID]
	}
	for _, h := range c.histograms {
		ch <- h.desc
	}
	ch <- c.auditDropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for _, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(c.counters[def.ID], prometheus.CounterValue, float64(snapshot.Counters[def.ID]))
	}

	for _, h := range c.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, le := range internaldefs.HistogramUpperBounds {
			buckets[le] = cumulative[i]
		}
		// The engine does not track a sum.
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.auditDropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// Handler registers a collector for source on a fresh registry, alongside the
// Go runtime and process collectors, and returns its exposition handler.
func Handler(source metricsSource) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		return nil, err
	}
	if err := reg.Register(prometheus.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
