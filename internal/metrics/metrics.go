// Package metrics holds the Prometheus collectors for provider calls, edits
// and analyses.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector groups every sheetbot metric on one registry.
type Collector struct {
	registry *prometheus.Registry

	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	edits           *prometheus.CounterVec
	analyses        *prometheus.CounterVec
	promptBytes     prometheus.Histogram
	truncations     prometheus.Counter
}

// NewCollector creates a collector backed by its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		providerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetbot_provider_calls_total",
				Help: "Total number of provider calls",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sheetbot_provider_latency_seconds",
				Help:    "Provider call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 60, 120},
			},
			[]string{"provider"},
		),
		edits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetbot_edits_total",
				Help: "Total number of edits by terminal state",
			},
			[]string{"state"},
		),
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetbot_analyses_total",
				Help: "Total number of analyses",
			},
			[]string{"status"},
		),
		promptBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sheetbot_analysis_data_bytes",
				Help:    "Size of the serialized dataset before truncation",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		truncations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sheetbot_analysis_truncations_total",
				Help: "Number of datasets truncated before analysis",
			},
		),
	}
}

// Registry exposes the underlying registry for export.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveProviderCall records one provider round-trip.
func (c *Collector) ObserveProviderCall(provider, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.providerCalls.WithLabelValues(provider, outcome).Inc()
	c.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// IncEdit counts an edit by its terminal state.
func (c *Collector) IncEdit(state string) {
	if c == nil {
		return
	}
	c.edits.WithLabelValues(state).Inc()
}

// IncAnalysis counts an analysis as "ok" or "error".
func (c *Collector) IncAnalysis(ok bool) {
	if c == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	c.analyses.WithLabelValues(status).Inc()
}

// ObserveDataSize records the serialized dataset size and whether it was cut.
func (c *Collector) ObserveDataSize(n int, truncated bool) {
	if c == nil {
		return
	}
	c.promptBytes.Observe(float64(n))
	if truncated {
		c.truncations.Inc()
	}
}

// WriteFile writes every metric in the Prometheus text format.
func (c *Collector) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
