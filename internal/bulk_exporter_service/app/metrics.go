package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	unitMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulk_export",
			Name:      "messages_published_total",
			Help:      "Total number of trigger messages confirmed by the broker.",
		},
		[]string{"unit"},
	)

	unitMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulk_export",
			Name:      "messages_failed_total",
			Help:      "Total number of trigger messages the broker did not confirm.",
		},
		[]string{"unit"},
	)

	unitLinesUnparsable = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulk_export",
			Name:      "lines_unparsable_total",
			Help:      "Total number of bulk file lines skipped because they could not be parsed.",
		},
		[]string{"unit"},
	)

	unitDownloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bulk_export",
			Name:      "download_duration_seconds",
			Help:      "Duration of downloading and decompressing one bulk file.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"unit"},
	)

	unitsExported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulk_export",
			Name:      "units_total",
			Help:      "Total number of export units processed.",
		},
		[]string{"unit", "status"}, // status="success" or "failed"
	)
)
