// Package metrics provides Prometheus metrics collection for tablekit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Prometheus metrics emitted by the sqlite adapter.
type Collector struct {
	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryErrors   *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Transaction metrics
	TxStartedTotal   prometheus.Counter
	TxCompletedTotal *prometheus.CounterVec
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a collector registered on the given registerer.
func NewWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tablekit",
				Name:      "queries_total",
				Help:      "Total number of statements executed",
			},
			[]string{"op", "table"},
		),
		QueryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tablekit",
				Name:      "query_errors_total",
				Help:      "Total number of failed statements",
			},
			[]string{"op", "table"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tablekit",
				Name:      "query_duration_seconds",
				Help:      "Statement duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"op"},
		),
		TxStartedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tablekit",
				Name:      "transactions_started_total",
				Help:      "Total number of transactions and savepoints opened",
			},
		),
		TxCompletedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tablekit",
				Name:      "transactions_completed_total",
				Help:      "Total number of transactions finished, by outcome",
			},
			[]string{"outcome"},
		),
	}
}
