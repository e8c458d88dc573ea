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
)

// Access request workflow
var (
	AccessRequestsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "access_requests_created_total",
			Help: "Access requests accepted into pending state",
		},
	)

	AccessRequestsResponded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_requests_responded_total",
			Help: "Access requests moved to a terminal state",
		},
		[]string{"outcome"},
	)

	AccessRequestsRejectedOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_request_operation_errors_total",
			Help: "Workflow operations refused or failed, by operation and error code",
		},
		[]string{"operation", "error_code"},
	)
)

// Notification fanout
var (
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "In-app notification records persisted",
		},
		[]string{"type"},
	)

	ChannelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_deliveries_total",
			Help: "Delivery attempts per channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	ChannelDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_channel_delivery_duration_seconds",
			Help:    "Latency of a single channel delivery attempt",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"channel"},
	)
)

// HTTP surface
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency by route",
		},
		[]string{"method", "route"},
	)
)
