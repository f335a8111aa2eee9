// Package metrics holds the Prometheus collectors for query execution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recall_queries_total",
		Help: "Total number of queries by terminal status and error kind",
	}, []string{"status", "kind"})
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recall_query_duration_seconds",
		Help:    "Wall time from dispatch to terminal message, including worker startup",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	WorkersInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recall_workers_in_flight",
		Help: "Number of execution units currently running",
	})
	ResultsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recall_results_returned",
		Help:    "Number of records returned per successful query",
		Buckets: prometheus.LinearBuckets(0, 2, 11),
	})
)

// ObserveQuery records one finished query. kind is empty on success.
func ObserveQuery(status, kind string, elapsed time.Duration, results int) {
	QueriesTotal.WithLabelValues(status, kind).Inc()
	QueryDuration.Observe(elapsed.Seconds())
	if status == "success" {
		ResultsReturned.Observe(float64(results))
	}
}

// WriteTextfile writes every registered metric to path in the text exposition format,
// for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
