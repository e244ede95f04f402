package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session Lifecycle Metrics
var (
	// SessionCallsTotal tracks authority calls by operation and outcome kind
	SessionCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_authority_calls_total",
			Help: "Total session authority calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// SessionCallDuration tracks authority call latency in seconds
	SessionCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_authority_call_duration_seconds",
			Help:    "Session authority call duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// SessionRenewalsTotal tracks renewals by trigger (timer/watchdog/manual)
	SessionRenewalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_renewals_total",
			Help: "Total session renewals by trigger",
		},
		[]string{"trigger"},
	)

	// SessionHardResetsTotal tracks scheduled hard resets by reason
	SessionHardResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_hard_resets_total",
			Help: "Total hard resets scheduled by reason",
		},
		[]string{"reason"},
	)

	// RuntimeReloadsTotal tracks console runtime rebuilds
	RuntimeReloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "console_runtime_reloads_total",
			Help: "Total console runtime rebuilds after a hard reset",
		},
	)
)

// Background Task Metrics
var (
	// TasksStartedTotal tracks dispatched tasks by type
	TasksStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_tasks_started_total",
			Help: "Total background tasks dispatched by type",
		},
		[]string{"type"},
	)

	// TaskOutcomesTotal tracks how tasks settled (success/error/cancelled/handed_off)
	TaskOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_task_outcomes_total",
			Help: "Total background task outcomes by type and result",
		},
		[]string{"type", "result"},
	)

	// TaskPollsTotal tracks poll ticks by result (active/finished/error)
	TaskPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_task_polls_total",
			Help: "Total status poll ticks by result",
		},
		[]string{"result"},
	)

	// ActiveMonitors tracks currently running poll monitors
	ActiveMonitors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "background_task_monitors_active",
			Help: "Number of running status poll monitors",
		},
	)

	// BackendStatusShared tracks status calls served by an in-flight duplicate
	BackendStatusShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backend_status_calls_shared_total",
			Help: "Total status calls that joined an identical in-flight request",
		},
	)
)

// Notification Metrics
var (
	// NotificationsTotal tracks emitted notifications by kind
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_emitted_total",
			Help: "Total notifications emitted by kind",
		},
		[]string{"kind"},
	)

	// NotificationStreamClients tracks connected notification stream clients
	NotificationStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_stream_clients",
			Help: "Number of connected notification stream clients",
		},
	)
)

// Durable Store Metrics
var (
	// StoreOpsTotal tracks durable store operations by backend, operation and status
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durable_store_operations_total",
			Help: "Total durable store operations by backend, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)

	// DBQueryDuration tracks Postgres query latency by statement verb
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Postgres query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total failed Postgres queries by statement verb",
		},
		[]string{"query"},
	)

	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// HTTP API Metrics
var (
	// HTTPErrorsTotal tracks HTTP errors by type
	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by error type",
		},
		[]string{"type"},
	)
)

// Build Information Metrics
var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information (always 1)",
		},
		[]string{"version", "commit", "go_version"},
	)
)
