package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// chunksGauge reports the number of chunks in the served index.
	chunksGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "campusd",
			Subsystem: "index",
			Name:      "chunks",
			Help:      "Number of chunks in the currently served index",
		},
	)

	// absentGauge is 1 while no index is loaded.
	absentGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "campusd",
			Subsystem: "index",
			Name:      "absent",
			Help:      "1 when no index is loaded and retrieval returns empty results",
		},
	)

	// buildsTotal counts index builds.
	// Labels: result (success, error)
	buildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusd",
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Total number of index builds",
		},
		[]string{"result"},
	)

	buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "campusd",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Duration of index builds including embedding",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)
)
