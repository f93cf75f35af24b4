package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func base(eventType string, tenant uuid.UUID) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, transfer.AggregateTypeQueueEntry, uuid.New(), tenant)
}

func TestMetrics_EventHandlerCountsQueueLifecycle(t *testing.T) {
	m := NewMetrics()
	h := m.EventHandler()
	ctx := context.Background()
	tenant := uuid.New()

	events := []shared.DomainEvent{
		&transfer.EntryEnqueuedEvent{BaseDomainEvent: base(transfer.EventTypeEntryEnqueued, tenant), EntityType: transfer.EntityTypeInvoice},
		&transfer.EntryApprovedEvent{BaseDomainEvent: base(transfer.EventTypeEntryApproved, tenant), EntityType: transfer.EntityTypeInvoice, WaitTime: 10 * time.Minute},
		&transfer.EntryFailedEvent{BaseDomainEvent: base(transfer.EventTypeEntryFailed, tenant), EntityType: transfer.EntityTypeInvoice},
		&transfer.EntryFailedEvent{BaseDomainEvent: base(transfer.EventTypeEntryFailed, tenant), EntityType: transfer.EntityTypeInvoice, Terminal: true},
		&transfer.EntryTransferredEvent{BaseDomainEvent: base(transfer.EventTypeEntryTransferred, tenant), EntityType: transfer.EntityTypeContact},
	}
	for _, e := range events {
		require.NoError(t, h.Handle(ctx, e))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueEvents.WithLabelValues("enqueued", "INVOICE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueEvents.WithLabelValues("approved", "INVOICE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transferOutcomes.WithLabelValues(OutcomeRetryScheduled, "INVOICE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transferOutcomes.WithLabelValues(OutcomeFailed, "INVOICE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transferOutcomes.WithLabelValues(OutcomeTransferred, "CONTACT")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.reviewWait))
}

func TestMetrics_BreakerState(t *testing.T) {
	m := NewMetrics()
	h := m.EventHandler()
	tenant := uuid.New()

	open := integration.NewBreakerTransitionedEvent(uuid.New(), tenant, integration.PlatformAccounting,
		"IntegrationConfig", integration.BreakerClosed, integration.BreakerOpen)
	require.NoError(t, h.Handle(context.Background(), open))

	gauge := m.breakerState.WithLabelValues("ACCOUNTING", tenant.String())
	assert.Equal(t, 2.0, testutil.ToFloat64(gauge))

	halfOpen := integration.NewBreakerTransitionedEvent(uuid.New(), tenant, integration.PlatformAccounting,
		"IntegrationConfig", integration.BreakerOpen, integration.BreakerHalfOpen)
	require.NoError(t, h.Handle(context.Background(), halfOpen))

	assert.Equal(t, 1.0, testutil.ToFloat64(gauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerTransitions.WithLabelValues("ACCOUNTING", "CLOSED", "OPEN")))
}

func TestMetrics_BacklogCoversEveryStatus(t *testing.T) {
	m := NewMetrics()
	m.SetBacklog(map[transfer.Status]int64{transfer.StatusPendingReview: 7})

	assert.Equal(t, 7.0, testutil.ToFloat64(m.backlog.WithLabelValues("PENDING_REVIEW")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.backlog.WithLabelValues("FAILED")))
	assert.Equal(t, len(transfer.AllStatuses()), testutil.CollectAndCount(m.backlog))
}

func TestMetrics_SchedulerRuns(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun("sweep", time.Second, nil)
	m.ObserveRun("sweep", time.Second, errors.New("db down"))
	m.AddCleanupDeleted(3)
	m.AddCleanupDeleted(0)

	assert.Equal(t, 2, testutil.CollectAndCount(m.sweepDuration))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cleanupDeleted))
}

func TestMetrics_GinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/v1/transfer-queue/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/transfer-queue/abc", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/transfer-queue/:id", "404")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ledgerbridge_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestMetrics_RegisterDBStats(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewMetrics()
	require.NoError(t, m.RegisterDBStats(db))
	assert.Error(t, m.RegisterDBStats(db), "registering the same pool twice is a conflict")

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_sql_open_connections"])
}
