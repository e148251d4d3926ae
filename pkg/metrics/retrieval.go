package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initRetrievalMetrics initializes retrieval pipeline metrics.
func (m *Manager) initRetrievalMetrics(cfg Config) {
	m.retrievalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_retrieval_requests_total",
			Help: "Total number of retrieval requests by status",
		},
		[]string{"status"},
	)

	m.retrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memory_retrieval_duration_seconds",
			Help:    "Retrieval pipeline duration in seconds",
			Buckets: cfg.RetrievalDurationBuckets,
		},
		[]string{"status"},
	)

	m.retrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memory_retrieval_results",
			Help:    "Number of results returned per retrieval",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	m.fusedCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memory_fused_candidates",
			Help:    "Number of candidates after fusion, before scoring",
			Buckets: []float64{0, 1, 5, 10, 20, 40},
		},
	)

	m.rerankOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_rerank_outcomes_total",
			Help: "Rerank call outcomes (success, failure, skipped)",
		},
		[]string{"outcome"},
	)

	m.gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_gate_decisions_total",
			Help: "Adaptive gate decisions by reason",
		},
		[]string{"reason"},
	)

	m.queryClassStrategy = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_query_weights_total",
			Help: "Query classifier weight selections",
		},
		[]string{"strategy"},
	)

	m.registry.MustRegister(m.retrievalRequests)
	m.registry.MustRegister(m.retrievalDuration)
	m.registry.MustRegister(m.retrievalResults)
	m.registry.MustRegister(m.fusedCandidates)
	m.registry.MustRegister(m.rerankOutcomes)
	m.registry.MustRegister(m.gateDecisions)
	m.registry.MustRegister(m.queryClassStrategy)
}

// RecordRetrieval records a retrieval request with its duration and
// result count.
func (m *Manager) RecordRetrieval(status string, duration time.Duration, results int) {
	if !m.enabled {
		return
	}
	m.retrievalRequests.WithLabelValues(status).Inc()
	m.retrievalDuration.WithLabelValues(status).Observe(duration.Seconds())
	if status == "success" {
		m.retrievalResults.Observe(float64(results))
	}
}

// RecordFusedCandidates records the candidate count entering the pipeline.
func (m *Manager) RecordFusedCandidates(count int) {
	if !m.enabled {
		return
	}
	m.fusedCandidates.Observe(float64(count))
}

// RecordRerankOutcome records a rerank call outcome.
func (m *Manager) RecordRerankOutcome(outcome string) {
	if !m.enabled {
		return
	}
	m.rerankOutcomes.WithLabelValues(outcome).Inc()
}

// RecordGateDecision records an adaptive gate decision.
func (m *Manager) RecordGateDecision(reason string) {
	if !m.enabled {
		return
	}
	m.gateDecisions.WithLabelValues(reason).Inc()
}

// RecordQueryStrategy records which weight strategy the classifier chose.
func (m *Manager) RecordQueryStrategy(strategy string) {
	if !m.enabled {
		return
	}
	m.queryClassStrategy.WithLabelValues(strategy).Inc()
}
