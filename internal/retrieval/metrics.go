package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queriesTotal counts retrieval queries.
	// Labels: result (hit, empty, absent, error)
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusd",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total number of retrieval queries by result",
		},
		[]string{"result"},
	)

	queryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "campusd",
			Subsystem: "retrieval",
			Name:      "query_duration_seconds",
			Help:      "Duration of retrieval queries including query embedding",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// reloadsTotal counts index reloads from disk.
	// Labels: result (success, absent, error)
	reloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusd",
			Subsystem: "retrieval",
			Name:      "reloads_total",
			Help:      "Total number of index reloads by result",
		},
		[]string{"result"},
	)
)
