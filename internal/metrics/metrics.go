// Package metrics holds the Prometheus collectors of the ingestion service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "statement_kfi"

// Run outcomes used as the "outcome" label of runs_total.
const (
	OutcomeSuccess = "success"
)

type Metrics struct {
	runs              *prometheus.CounterVec
	modelCallFailures prometheus.Counter
	extractedTxs      prometheus.Histogram
	stageDuration     *prometheus.HistogramVec
	storeRequests     *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Number of ingestion runs by outcome (success or error kind).",
			},
			[]string{"outcome"},
		),
		modelCallFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_call_failures_total",
				Help:      "Number of text-generation calls that failed or timed out.",
			},
		),
		extractedTxs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extracted_transactions",
				Help:      "Transactions extracted per statement.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each ingestion stage in seconds.",
				Buckets:   []float64{0.001, 0.010, 0.100, 0.500, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		storeRequests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_request_duration_seconds",
				Help:      "Duration of record-store requests in seconds.",
				Buckets:   []float64{0.001, 0.010, 0.100, 0.200, 0.500, 1, 2, 5, 10, 30},
			},
			[]string{"method", "endpoint", "response_code"},
		),
	}

	reg.MustRegister(m.runs, m.modelCallFailures, m.extractedTxs, m.stageDuration, m.storeRequests)
	return m
}

// RunFinished counts one finished run under outcome.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ModelCallFailed() {
	if m == nil {
		return
	}
	m.modelCallFailures.Inc()
}

func (m *Metrics) TransactionsExtracted(n int) {
	if m == nil {
		return
	}
	m.extractedTxs.Observe(float64(n))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveStoreRequest records one record-store call. endpoint should be the
// route template, not the concrete path, to keep label cardinality bounded.
func (m *Metrics) ObserveStoreRequest(method, endpoint string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.storeRequests.WithLabelValues(method, endpoint, fmt.Sprint(statusCode)).Observe(d.Seconds())
}
