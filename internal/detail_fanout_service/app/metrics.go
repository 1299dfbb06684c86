package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "detail_fanout",
			Name:      "requests_total",
			Help:      "Total number of detail export requests by outcome.",
		},
		[]string{"entity_type", "outcome"}, // outcome="success", "rejected", "fetch_failed", "encode_failed"
	)

	endpointFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "detail_fanout",
			Name:      "endpoint_fetch_duration_seconds",
			Help:      "Duration of fetching one detail endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"entity_type", "response_type"},
	)

	detailMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "detail_fanout",
			Name:      "messages_published_total",
			Help:      "Total number of detail messages confirmed by the broker.",
		},
		[]string{"entity_type"},
	)

	detailMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "detail_fanout",
			Name:      "messages_failed_total",
			Help:      "Total number of detail messages the broker did not confirm.",
		},
		[]string{"entity_type"},
	)
)
