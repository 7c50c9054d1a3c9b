// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "liquidity_evaluator"

// Metrics holds all Prometheus metrics for the evaluator.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Intake metrics
	EventsReceived     prometheus.Counter
	Resubscriptions    prometheus.Counter
	LastEvaluatedBlock prometheus.Gauge

	// Decision metrics
	Decisions     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec

	// Off-chain metrics
	OffChainAttempts *prometheus.CounterVec

	// Simulation metrics
	SimulationsRun        prometheus.Counter
	SuspiciousSimulations prometheus.Counter
	SimulationFeePercent  prometheus.Histogram
}

// NewMetrics registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Intake metrics
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "events_received_total",
			Help:      "Total number of PairCreated events received",
		}),
		Resubscriptions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "resubscriptions_total",
			Help:      "Total number of factory log resubscriptions",
		}),
		LastEvaluatedBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "last_evaluated_block",
			Help:      "Block number of the last evaluated candidate",
		}),

		// Decision metrics
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decisions_total",
			Help:      "Total number of decisions by outcome and terminal stage",
		}, []string{"outcome", "stage"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		// Off-chain metrics
		OffChainAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offchain",
			Name:      "attempts_total",
			Help:      "Total number of off-chain lookup attempts by service and result",
		}, []string{"service", "result"}),

		// Simulation metrics
		SimulationsRun: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of completed forked round trips",
		}),
		SuspiciousSimulations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "suspicious_total",
			Help:      "Total number of round trips that ended with more than they started",
		}),
		SimulationFeePercent: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "fee_percent",
			Help:      "Realized round-trip fee percentage",
			Buckets:   []float64{-100, -50, -20, -10, -5, -1, 0, 1, 5, 10, 15, 25, 50, 100},
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordEvent increments the events received counter.
func (m *Metrics) RecordEvent() {
	if m == nil {
		return
	}
	m.EventsReceived.Inc()
}

// RecordResubscribe increments the resubscription counter.
func (m *Metrics) RecordResubscribe() {
	if m == nil {
		return
	}
	m.Resubscriptions.Inc()
}

// RecordDecision records a terminal decision.
func (m *Metrics) RecordDecision(outcome, stage string, block uint64) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome, stage).Inc()
	if block > 0 {
		m.LastEvaluatedBlock.Set(float64(block))
	}
}

// RecordStage records how long a stage took.
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordOffChainAttempt records one off-chain attempt.
func (m *Metrics) RecordOffChainAttempt(service string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OffChainAttempts.WithLabelValues(service, result).Inc()
}

// RecordSimulation records a completed round trip.
func (m *Metrics) RecordSimulation(feePercent float64, suspicious bool) {
	if m == nil {
		return
	}
	m.SimulationsRun.Inc()
	m.SimulationFeePercent.Observe(feePercent)
	if suspicious {
		m.SuspiciousSimulations.Inc()
	}
}
