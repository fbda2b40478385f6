// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes for CaregiverStoreCacheRequests.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
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

	CaregiverMatchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caregiver_match_results",
			Help:    "Number of caregivers that passed the threshold per matching run",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
	)

	CaregiverAutoAssignments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caregiver_auto_assignments_total",
			Help: "Visits assigned to the top-ranked caregiver without coordinator review",
		},
	)

	CaregiverStoreCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caregiver_store_cache_requests_total",
			Help: "Active caregiver snapshot lookups against Redis by outcome",
		},
		[]string{"result"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caregiver_match_notifications_total",
			Help: "Notifications sent after matching, by channel and status",
		},
		[]string{"channel", "status"},
	)
)
