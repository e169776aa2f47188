package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts chat messages by classified intent.
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusd",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of chat messages by intent",
		},
		[]string{"intent"},
	)

	retrievalErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campusd",
			Subsystem: "chat",
			Name:      "retrieval_errors_total",
			Help:      "Retrieval failures answered with the fallback sentence",
		},
	)
)
