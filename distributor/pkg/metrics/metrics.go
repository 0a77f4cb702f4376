package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stellarpool_distributor_build_info",
			Help: "Build information of the Stellar pool distributor",
		},
		[]string{"version", "commit", "date"},
	)

	DistributionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellarpool_distribution_runs_total",
			Help: "Total number of distribution runs",
		},
		[]string{"outcome"}, // "completed", "threshold_not_reached", "aborted", "error"
	)

	DistributionRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stellarpool_distribution_run_duration_seconds",
			Help:    "Duration of distribution runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~410s
		},
	)

	DistributionRewardsStroops = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stellarpool_distribution_rewards_stroops",
			Help: "Amounts of the last distribution run in stroops",
		},
		[]string{"kind"}, // "prize", "gross", "net", "fees"
	)

	DistributionVotersProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stellarpool_distribution_voters_processed_total",
			Help: "Total number of voters for which a reward was computed",
		},
	)

	BatchesSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellarpool_batches_submitted_total",
			Help: "Total number of payment batches handed to a submitter",
		},
		[]string{"status"}, // "ok", "dry_run", "failed"
	)

	BatchSubmitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stellarpool_batch_submit_duration_seconds",
			Help:    "Duration of payment batch submissions",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
	)

	CoreDBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellarpool_coredb_queries_total",
			Help: "Total number of stellar-core database queries",
		},
		[]string{"query", "status"},
	)

	CoreDBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stellarpool_coredb_query_duration_seconds",
			Help:    "Duration of stellar-core database queries",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"query"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellarpool_notifications_total",
			Help: "Total number of run notifications sent",
		},
		[]string{"channel", "status"},
	)
)

// RecordCoreDBQuery records metrics for a stellar-core database query.
func RecordCoreDBQuery(query string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	CoreDBQueriesTotal.WithLabelValues(query, status).Inc()
	CoreDBQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}
