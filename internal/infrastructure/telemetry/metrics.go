package telemetry

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledgerbridge"

// Transfer outcome label values
const (
	OutcomeTransferred    = "transferred"
	OutcomeRetryScheduled = "retry_scheduled"
	OutcomeFailed         = "failed"
)

// Metrics is the Prometheus collector set of the service. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	queueEvents        *prometheus.CounterVec
	transferOutcomes   *prometheus.CounterVec
	reviewWait         *prometheus.HistogramVec
	backlog            *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	sweepDuration      *prometheus.HistogramVec
	cleanupDeleted     prometheus.Counter
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewMetrics registers every collector, plus the Go runtime and process
// collectors, on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queueEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "events_total",
			Help:      "Transfer queue lifecycle events by type and entity type.",
		}, []string{"event", "entity_type"}),
		transferOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "outcomes_total",
			Help:      "Results reported by the transfer worker.",
		}, []string{"outcome", "entity_type"}),
		reviewWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "review_wait_seconds",
			Help:      "Time an entry waited in review before approval.",
			Buckets:   []float64{60, 300, 900, 3600, 4 * 3600, 24 * 3600, 72 * 3600},
		}, []string{"entity_type"}),
		backlog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "backlog",
			Help:      "Queue entries per status across tenants, refreshed by the sweep.",
		}, []string{"status"}),
		breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker status changes.",
		}, []string{"platform", "from", "to"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Last observed breaker status: 0 closed, 1 half-open, 2 open.",
		}, []string{"platform", "tenant_id"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of scheduled sweep and cleanup runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job", "result"}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "cleanup_deleted_total",
			Help:      "Finished entries removed by cleanup.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.queueEvents, m.transferOutcomes, m.reviewWait, m.backlog,
		m.breakerTransitions, m.breakerState, m.sweepDuration, m.cleanupDeleted,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// RegisterDBStats exports the connection pool statistics of db
func (m *Metrics) RegisterDBStats(db *sql.DB) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, namespace))
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetBacklog replaces the backlog gauge with counts per status
func (m *Metrics) SetBacklog(byStatus map[transfer.Status]int64) {
	for _, s := range transfer.AllStatuses() {
		m.backlog.WithLabelValues(string(s)).Set(float64(byStatus[s]))
	}
}

// ObserveRun records a scheduler run
func (m *Metrics) ObserveRun(job string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sweepDuration.WithLabelValues(job, result).Observe(d.Seconds())
}

// AddCleanupDeleted counts rows removed by cleanup
func (m *Metrics) AddCleanupDeleted(n int64) {
	if n > 0 {
		m.cleanupDeleted.Add(float64(n))
	}
}

// GinMiddleware counts requests by matched route template, so ids in paths
// do not explode label cardinality
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// EventHandler returns the bus subscriber that turns domain events into
// metric updates
func (m *Metrics) EventHandler() shared.EventHandler {
	return &metricsHandler{m: m}
}

type metricsHandler struct {
	m *Metrics
}

func (h *metricsHandler) EventTypes() []string {
	return []string{
		transfer.EventTypeEntryEnqueued,
		transfer.EventTypeEntryApproved,
		transfer.EventTypeEntryRejected,
		transfer.EventTypeEntryTransferred,
		transfer.EventTypeEntryFailed,
		integration.EventTypeBreakerTransitioned,
	}
}

func (h *metricsHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	m := h.m
	switch e := evt.(type) {
	case *transfer.EntryEnqueuedEvent:
		m.queueEvents.WithLabelValues("enqueued", string(e.EntityType)).Inc()
	case *transfer.EntryApprovedEvent:
		m.queueEvents.WithLabelValues("approved", string(e.EntityType)).Inc()
		m.reviewWait.WithLabelValues(string(e.EntityType)).Observe(e.WaitTime.Seconds())
	case *transfer.EntryRejectedEvent:
		m.queueEvents.WithLabelValues("rejected", string(e.EntityType)).Inc()
	case *transfer.EntryTransferredEvent:
		m.transferOutcomes.WithLabelValues(OutcomeTransferred, string(e.EntityType)).Inc()
	case *transfer.EntryFailedEvent:
		outcome := OutcomeRetryScheduled
		if e.Terminal {
			outcome = OutcomeFailed
		}
		m.transferOutcomes.WithLabelValues(outcome, string(e.EntityType)).Inc()
	case *integration.BreakerTransitionedEvent:
		platform := string(e.Platform)
		m.breakerTransitions.WithLabelValues(platform, string(e.From), string(e.To)).Inc()
		m.breakerState.WithLabelValues(platform, e.TenantID().String()).Set(breakerStateValue(e.To))
	}
	return nil
}

func breakerStateValue(s integration.BreakerStatus) float64 {
	switch s {
	case integration.BreakerOpen:
		return 2
	case integration.BreakerHalfOpen:
		return 1
	case integration.BreakerClosed:
		return 0
	default:
		return 0
	}
}
