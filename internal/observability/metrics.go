package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service's prometheus collectors on a private registry.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
	workflowRuns    *prometheus.CounterVec
	aiFallbacks     prometheus.Counter
	assignments     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	slaNearBreach   prometheus.Counter
	slaBreached     prometheus.Counter
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "HTTP requests by path, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_errors_total",
			Help: "HTTP errors by path, method and error code.",
		}, []string{"path", "method", "code"}),
		workflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_assignment_workflow_runs_total",
			Help: "Assignment workflow runs by outcome.",
		}, []string{"outcome"}),
		aiFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_ai_analysis_fallbacks_total",
			Help: "Tickets analyzed with the default analysis because the AI call failed.",
		}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_assignments_total",
			Help: "Automatic assignments by assignee source.",
		}, []string{"source"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_notifications_total",
			Help: "Notification attempts by stage, type and result. Stage is queued or delivered.",
		}, []string{"stage", "type", "result"}),
		slaNearBreach: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_sla_near_breach_tickets_total",
			Help: "Tickets found inside the SLA warning window by sweeps.",
		}),
		slaBreached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_sla_breached_tickets_total",
			Help: "Tickets flagged as SLA breached by sweeps.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCount,
		m.requestDuration,
		m.errorCount,
		m.workflowRuns,
		m.aiFallbacks,
		m.assignments,
		m.notifications,
		m.slaNearBreach,
		m.slaBreached,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordWorkflow counts a finished workflow run.
func (m *Metrics) RecordWorkflow(outcome string) {
	if m == nil {
		return
	}
	m.workflowRuns.WithLabelValues(outcome).Inc()
}

// RecordAIFallback counts a default analysis substitution.
func (m *Metrics) RecordAIFallback() {
	if m == nil {
		return
	}
	m.aiFallbacks.Inc()
}

// RecordAssignment counts an automatic assignment; source is moderator, admin or none.
func (m *Metrics) RecordAssignment(source string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(source).Inc()
}

// RecordNotification counts a notification handed to the queue.
func (m *Metrics) RecordNotification(notificationType string, ok bool) {
	m.recordNotification("queued", notificationType, ok)
}

// RecordDelivery counts a delivery attempt made by the notification worker.
func (m *Metrics) RecordDelivery(notificationType string, ok bool) {
	m.recordNotification("delivered", notificationType, ok)
}

func (m *Metrics) recordNotification(stage, notificationType string, ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(stage, notificationType, result).Inc()
}

// RecordSweep adds one sweep's counts.
func (m *Metrics) RecordSweep(nearBreach, breached int) {
	if m == nil {
		return
	}
	m.slaNearBreach.Add(float64(nearBreach))
	m.slaBreached.Add(float64(breached))
}
