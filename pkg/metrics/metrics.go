package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// store operation latency per backend
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Task/user store operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation", "backend"},
	)

	// slow postgres queries
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of database queries over the slow threshold",
		},
		[]string{"command"},
	)

	// task mutations by result
	TaskMutationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_mutation_count",
			Help: "Total number of task mutations",
		},
		[]string{"operation", "result"}, // operation: create, update, delete, toggle_important
	)

	// signup and login attempts by result
	AuthAttemptCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempt_count",
			Help: "Total number of signup/login attempts",
		},
		[]string{"action", "result"},
	)

	SessionRevocationCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_revocation_count",
			Help: "Total number of sessions revoked by logout",
		},
	)

	// internal/client call latency in seconds
	ClientCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_client_call_duration_seconds",
			Help:    "taskboard API client call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"endpoint", "status"},
	)
)

// RecordHTTPRequestDuration observes one request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordStoreOperation observes one store call.
func RecordStoreOperation(operation, backend string, start time.Time) {
	StoreOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
}

func IncrementSlowQuery(command string) {
	SlowQueryCount.WithLabelValues(command).Inc()
}

// IncrementTaskMutation counts operation as success or failed.
func IncrementTaskMutation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	TaskMutationCount.WithLabelValues(operation, result).Inc()
}

func IncrementAuthAttempt(action string, err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	AuthAttemptCount.WithLabelValues(action, result).Inc()
}

func IncrementSessionRevocation() {
	SessionRevocationCount.Inc()
}

// RecordClientCall observes one API client call.
func RecordClientCall(endpoint, status string, duration time.Duration) {
	ClientCallDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}
