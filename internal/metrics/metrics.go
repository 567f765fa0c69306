package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcal_calculations_total",
			Help: "Total calibration calculations by outcome",
		},
		[]string{"experiment", "outcome"},
	)

	RowsExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcal_rows_excluded_total",
			Help: "Entered rows dropped because a required field was missing or invalid",
		},
		[]string{"experiment"},
	)

	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcal_records_written_total",
			Help: "Total calibration records persisted",
		},
		[]string{"experiment", "status"},
	)

	RecordsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcal_records_read_total",
			Help: "Most-recent record lookups by result",
		},
		[]string{"experiment", "result"},
	)

	NormalizeSource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcal_normalize_source_total",
			Help: "Which document field supplied the computed rows when reading a stored record",
		},
		[]string{"experiment", "source"},
	)

	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowcal_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
)
