package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Executor metrics
	ExecutorDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xians_executor_dispatches_total",
			Help: "Capability dispatches routed by the context-aware executor",
		},
		[]string{"capability", "path"},
	)

	// HTTP client metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xians_http_requests_total",
			Help: "Outbound backend HTTP requests",
		},
		[]string{"method", "status"},
	)

	HTTPRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xians_http_retries_total",
			Help: "Outbound backend HTTP retry attempts",
		},
	)

	HTTPRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "xians_http_request_duration_seconds",
			Help:    "Outbound backend HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Messaging metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xians_messages_sent_total",
			Help: "User messages delivered to the backend",
		},
		[]string{"kind", "status"},
	)

	// Log uploader metrics
	LogBatchesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xians_log_batches_uploaded_total",
			Help: "Log batches successfully uploaded to the server sink",
		},
	)

	LogEntriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xians_log_entries_dropped_total",
			Help: "Log entries dropped because the upload buffer was full",
		},
	)

	// Usage metrics
	UsageReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xians_usage_reports_total",
			Help: "Usage records reported to the backend",
		},
		[]string{"status"},
	)

	// Task workflow metrics
	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xians_tasks_completed_total",
			Help: "HITL task workflows completed",
		},
		[]string{"outcome"},
	)
)
