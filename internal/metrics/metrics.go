// Package metrics registers the storefront's domain collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cell transition results.
const (
	ResultCommitted  = "committed"
	ResultRolledBack = "rolled_back"
	ResultRejected   = "rejected"
)

var (
	// Settled cell clicks partitioned by action and result
	cellTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_cell_transitions_total",
			Help: "Number cell clicks by action and result",
		},
		[]string{"action", "result"},
	)

	// Remote call latency of cell and batch calls
	remoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raffle_remote_call_duration_seconds",
			Help:    "Latency of reserve, unreserve and sell calls to the raffle service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// Batch submissions partitioned by operation and outcome kind
	batchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_batch_outcomes_total",
			Help: "Batch sell and purchase submissions by outcome",
		},
		[]string{"operation", "kind"},
	)

	// Boards currently held in memory
	openBoards = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raffle_open_boards",
			Help: "Number of raffle boards held by live sessions",
		},
	)
)

// ObserveTransition records one settled or rejected click.
func ObserveTransition(action, result string, seconds float64) {
	cellTransitions.WithLabelValues(action, result).Inc()
	if result != ResultRejected {
		remoteCallDuration.WithLabelValues(action).Observe(seconds)
	}
}

// ObserveSale records one batch sell call.
func ObserveSale(operation string, seconds float64) {
	remoteCallDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveBatch records one batch submission.
func ObserveBatch(operation, kind string) {
	batchOutcomes.WithLabelValues(operation, kind).Inc()
}

// BoardOpened and BoardClosed track live boards.
func BoardOpened() { openBoards.Inc() }

func BoardClosed() { openBoards.Dec() }
