// Package metrics exposes ingestion counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsInserted counts rows written, by table.
	RowsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simsubs_rows_inserted_total",
		Help: "Total number of rows inserted by table",
	}, []string{"table"})

	// PostsSkipped counts posts that were already stored.
	PostsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simsubs_posts_skipped_total",
		Help: "Total number of fetched posts already present in storage",
	}, []string{"community"})

	// RecordsRejected counts malformed upstream items, by kind.
	RecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simsubs_records_rejected_total",
		Help: "Total number of malformed upstream records rejected",
	}, []string{"kind"})

	// BatchDuration records how long one community batch takes.
	BatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simsubs_batch_duration_seconds",
		Help:    "Duration of a community ingestion batch in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"community"})
)
