package documents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// uploadsTotal counts document uploads.
	// Labels: result (success, too_large, extraction_failed)
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusd",
			Subsystem: "study",
			Name:      "uploads_total",
			Help:      "Total number of document uploads by result",
		},
		[]string{"result"},
	)

	studyOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusd",
			Subsystem: "study",
			Name:      "operations_total",
			Help:      "Total number of study tool invocations by operation",
		},
		[]string{"operation"},
	)
)
