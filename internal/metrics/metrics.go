// Package metrics records credential store activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/systmms/credstore/pkg/credential"
)

// Recorder receives one call per store operation.
type Recorder interface {
	// Operation records a completed operation. The outcome label is derived
	// from err's kind in the credential error taxonomy.
	Operation(store, operation string, err error, elapsed time.Duration)

	// SearchResults records how many entries a search returned.
	SearchResults(store string, n int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Operation(string, string, error, time.Duration) {}
func (Nop) SearchResults(string, int)                      {}

// Prometheus exports operations as Prometheus metrics.
type Prometheus struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	results    *prometheus.HistogramVec
}

// NewPrometheus registers the credstore metrics with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credstore_operations_total",
				Help: "Total number of credential store operations by outcome",
			},
			[]string{"store", "operation", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credstore_operation_duration_seconds",
				Help:    "Duration of credential store operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"store", "operation"},
		),
		results: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credstore_search_results",
				Help:    "Number of entries returned by credential searches",
				Buckets: []float64{0, 1, 2, 5, 10, 50, 100},
			},
			[]string{"store"},
		),
	}
}

// Operation implements Recorder.
func (p *Prometheus) Operation(store, operation string, err error, elapsed time.Duration) {
	p.operations.WithLabelValues(store, operation, credential.KindOf(err).String()).Inc()
	p.duration.WithLabelValues(store, operation).Observe(elapsed.Seconds())
}

// SearchResults implements Recorder.
func (p *Prometheus) SearchResults(store string, n int) {
	p.results.WithLabelValues(store).Observe(float64(n))
}

// WriteTextfile writes every metric in g to path in the text exposition
// format, for collection by node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
