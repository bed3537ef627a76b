package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docoptimizer"

var (
	DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "documents_processed_total",
		Help:      "Processed documents by strategy.",
	}, []string{"strategy"})

	ProcessingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "processing_failures_total",
		Help:      "Failed processing calls by error kind.",
	}, []string{"kind"})

	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "processing_duration_seconds",
		Help:      "Wall time of processing calls by content class.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"class"})

	BytesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_saved_total",
		Help:      "Bytes removed by compression.",
	})

	SlowOperations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slow_operations_total",
		Help:      "Processing calls slower than the configured threshold.",
	})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Uploads accepted by the api by mode.",
	}, []string{"mode"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
