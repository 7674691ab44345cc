// Package metrics exposes the service's Prometheus collectors and small
// helpers to record them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mednotes"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// LLM metrics
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM completions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM completion latency in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// Clinical metrics
	notesAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_analyzed_total",
			Help:      "Total number of notes summarized, by assessed risk level",
		},
		[]string{"risk_level"},
	)

	riskReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_reports_total",
			Help:      "Total number of patient risk reports built",
		},
		[]string{"risk_level"},
	)

	// Task metrics
	tasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_enqueued_total",
			Help:      "Total number of background tasks enqueued",
		},
		[]string{"endpoint", "mode"},
	)

	tasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of background tasks finished, by status",
		},
		[]string{"endpoint", "status"},
	)

	taskQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_depth",
			Help:      "Number of tasks waiting in the local queue",
		},
	)

	// Notification and reporting metrics
	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notifications attempted",
		},
		[]string{"type", "channel", "status"},
	)

	reportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		},
		[]string{"type"},
	)

	auditEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_total",
			Help:      "Total number of audit entries persisted",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// --- HTTP helpers ---

func RequestStarted() { httpRequestsInFlight.Inc() }

func RequestFinished() { httpRequestsInFlight.Dec() }

// RecordRequest records a finished HTTP request. route should be the
// matched route template, not the raw path.
func RecordRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// --- Business metric helpers ---

// RecordLLMCall records one completion attempt
func RecordLLMCall(operation string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	llmRequestsTotal.WithLabelValues(operation, outcome).Inc()
	llmRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLLMFallback records an operation answered by the keyword fallback
func RecordLLMFallback(operation string) {
	llmRequestsTotal.WithLabelValues(operation, "fallback").Inc()
}

func RecordNoteAnalyzed(riskLevel string) {
	notesAnalyzed.WithLabelValues(riskLevel).Inc()
}

func RecordRiskReport(riskLevel string) {
	riskReports.WithLabelValues(riskLevel).Inc()
}

func RecordTaskEnqueued(endpoint, mode string) {
	tasksEnqueued.WithLabelValues(endpoint, mode).Inc()
}

func RecordTaskCompleted(endpoint string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	tasksCompleted.WithLabelValues(endpoint, status).Inc()
}

func SetTaskQueueDepth(n int) {
	taskQueueDepth.Set(float64(n))
}

func RecordNotification(notificationType, channel, status string) {
	notificationsSent.WithLabelValues(notificationType, channel, status).Inc()
}

func RecordReportGenerated(reportType string) {
	reportsGenerated.WithLabelValues(reportType).Inc()
}

func RecordAuditEntry() {
	auditEntriesTotal.Inc()
}
