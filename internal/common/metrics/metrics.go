// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// Engine

	MatchScores = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_score",
			Help:    "Distribution of computed match scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 85, 100},
		},
		[]string{"band"},
	)

	MatchInputClamped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_input_clamped_total",
			Help: "Numeric scoring inputs that were negative or non-finite and got clamped",
		},
		[]string{"field"},
	)

	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_transitions_total",
			Help: "State machine transitions by machine, target status and outcome",
		},
		[]string{"machine", "status", "outcome"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_notifications_total",
			Help: "Candidate status notifications by outcome (sent, failed, dropped)",
		},
		[]string{"outcome"},
	)

	FeedRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_rows",
			Help:    "Rows returned per ranked feed",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	ApplicationsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "applications_by_status",
			Help: "Applications currently in each pipeline status",
		},
		[]string{"status"},
	)
)
