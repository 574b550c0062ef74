package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Cycle metrics
	CyclesTotal    prometheus.Counter
	CycleDuration  prometheus.Histogram
	CycleFailures  *prometheus.CounterVec
	SampleFailures prometheus.Counter

	// Classification metrics
	ClassificationsTotal   *prometheus.CounterVec
	ClassificationFailures prometheus.Counter

	// State machine metrics
	TransitionsTotal *prometheus.CounterVec
	NodesTracked     prometheus.Gauge
	GreylistSize     prometheus.Gauge

	// Healing metrics
	ActionsTotal   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	AlertsTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "healing_agent_cycles_total",
				Help: "Total number of check cycles started",
			},
		),

		CycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "healing_agent_cycle_duration_seconds",
				Help:    "Duration of check cycles",
				Buckets: prometheus.DefBuckets,
			},
		),

		CycleFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healing_agent_cycle_failures_total",
				Help: "Total number of check cycles aborted by errors",
			},
			[]string{"stage"},
		),

		SampleFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "healing_agent_sample_failures_total",
				Help: "Total number of failed health sampling attempts",
			},
		),

		ClassificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healing_agent_classifications_total",
				Help: "Total number of per-node risk classifications",
			},
			[]string{"severity"},
		),

		ClassificationFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "healing_agent_classification_failures_total",
				Help: "Total number of per-node classification failures (node marked stale)",
			},
		),

		TransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healing_agent_transitions_total",
				Help: "Total number of node state transitions",
			},
			[]string{"kind"},
		),

		NodesTracked: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "healing_agent_nodes_tracked",
				Help: "Number of nodes currently tracked",
			},
		),

		GreylistSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "healing_agent_greylist_size",
				Help: "Number of nodes currently greylisted",
			},
		),

		ActionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healing_agent_actions_total",
				Help: "Total number of healing actions by terminal outcome",
			},
			[]string{"kind", "outcome"},
		),

		ActionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healing_agent_action_duration_seconds",
				Help:    "Duration of healing action execution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		AlertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healing_agent_alerts_total",
				Help: "Total number of alert events dispatched",
			},
			[]string{"type"},
		),
	}
}

// RecordCycle records a completed cycle
func (m *Metrics) RecordCycle(duration float64) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(duration)
}

// RecordCycleFailure records an aborted cycle
func (m *Metrics) RecordCycleFailure(stage string) {
	m.CycleFailures.WithLabelValues(stage).Inc()
}

// RecordClassification records a per-node classification result
func (m *Metrics) RecordClassification(severity string) {
	m.ClassificationsTotal.WithLabelValues(severity).Inc()
}

// RecordTransition records a node state transition
func (m *Metrics) RecordTransition(kind string) {
	m.TransitionsTotal.WithLabelValues(kind).Inc()
}

// RecordAction records a healing action's terminal outcome
func (m *Metrics) RecordAction(kind, outcome string, duration float64) {
	m.ActionsTotal.WithLabelValues(kind, outcome).Inc()
	m.ActionDuration.WithLabelValues(kind).Observe(duration)
}

// RecordAlert records a dispatched alert event
func (m *Metrics) RecordAlert(eventType string) {
	m.AlertsTotal.WithLabelValues(eventType).Inc()
}

// UpdateNodeGauges updates the tracked node and greylist gauges
func (m *Metrics) UpdateNodeGauges(tracked, greylisted int) {
	m.NodesTracked.Set(float64(tracked))
	m.GreylistSize.Set(float64(greylisted))
}
