// Package metrics records per-run pipeline counters on a private Prometheus
// registry and can export them to a node_exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ltv_pipeline"

// Pipeline holds the metrics for one run.
type Pipeline struct {
	registry *prometheus.Registry

	EventsTotal          *prometheus.CounterVec
	RejectionsTotal      *prometheus.CounterVec
	CustomersSkipped     *prometheus.CounterVec
	LTVRecords           prometheus.Gauge
	StageDurationSeconds *prometheus.GaugeVec
}

// New creates the metrics on a fresh registry.
func New() *Pipeline {
	p := &Pipeline{registry: prometheus.NewRegistry()}

	p.EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Input events processed, by event type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	p.RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected events, by event type and reason code.",
		},
		[]string{"type", "reason"},
	)
	p.CustomersSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ltv_customers_skipped_total",
			Help:      "Customers without an LTV record, by reason.",
		},
		[]string{"reason"},
	)
	p.LTVRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ltv_records",
			Help:      "LTV records produced by the last aggregation.",
		},
	)
	p.StageDurationSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
		},
		[]string{"stage"},
	)

	p.registry.MustRegister(p.EventsTotal, p.RejectionsTotal, p.CustomersSkipped, p.LTVRecords, p.StageDurationSeconds)
	return p
}

// Registry exposes the underlying registry for gathering.
func (p *Pipeline) Registry() *prometheus.Registry { return p.registry }

// WriteTextfile writes all metrics to path in text exposition format.
func (p *Pipeline) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
