package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsTotal counts finished tasks by result.
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Ingestion tasks by result (ready, error, cancelled)",
		},
		[]string{"class", "result"},
	)

	// ChunksTotal counts chunks by outcome.
	ChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Chunks by outcome (embedded, failed, dropped, discarded)",
		},
		[]string{"outcome"},
	)

	// Duration observes task duration.
	Duration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Duration of ingestion tasks",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"class"},
	)

	// InFlight is the number of running tasks.
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docrag",
			Subsystem: "ingest",
			Name:      "in_flight",
			Help:      "Ingestion tasks currently running",
		},
	)
)
