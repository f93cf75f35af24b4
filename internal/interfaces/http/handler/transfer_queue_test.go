package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	transferapp "github.com/ledgerbridge/backend/internal/application/transfer"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/interfaces/http/dto"
	"github.com/ledgerbridge/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockQueueService struct {
	mock.Mock
}

func (m *mockQueueService) ProcessChanges(ctx context.Context, tenantID uuid.UUID) (*transferapp.ProcessResult, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transferapp.ProcessResult), args.Error(1)
}

func (m *mockQueueService) GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*transferapp.QueueEntryResponse, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transferapp.QueueEntryResponse), args.Error(1)
}

func (m *mockQueueService) GetPendingEntries(ctx context.Context, tenantID uuid.UUID, q transferapp.PendingQuery) ([]transferapp.QueueEntryResponse, error) {
	args := m.Called(ctx, tenantID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]transferapp.QueueEntryResponse), args.Error(1)
}

func (m *mockQueueService) GetApprovedEntries(ctx context.Context, tenantID uuid.UUID, limit int) ([]transferapp.QueueEntryResponse, error) {
	args := m.Called(ctx, tenantID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]transferapp.QueueEntryResponse), args.Error(1)
}

func (m *mockQueueService) Approve(ctx context.Context, tenantID, id uuid.UUID, req transferapp.ApproveRequest) (*transferapp.QueueEntryResponse, error) {
	args := m.Called(ctx, tenantID, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transferapp.QueueEntryResponse), args.Error(1)
}

func (m *mockQueueService) Retry(ctx context.Context, tenantID, id uuid.UUID, req transferapp.ApproveRequest) (*transferapp.QueueEntryResponse, error) {
	args := m.Called(ctx, tenantID, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transferapp.QueueEntryResponse), args.Error(1)
}

func (m *mockQueueService) Reject(ctx context.Context, tenantID, id uuid.UUID, req transferapp.RejectRequest) (*transferapp.QueueEntryResponse, error) {
	args := m.Called(ctx, tenantID, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transferapp.QueueEntryResponse), args.Error(1)
}

func (m *mockQueueService) BulkApprove(ctx context.Context, tenantID uuid.UUID, req transferapp.BulkApproveRequest) (*transferapp.BulkApproveResult, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transferapp.BulkApproveResult), args.Error(1)
}

func (m *mockQueueService) MarkTransferred(ctx context.Context, tenantID, id uuid.UUID, req transferapp.MarkTransferredRequest) (*transferapp.QueueEntryResponse, error) {
	args := m.Called(ctx, tenantID, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transferapp.QueueEntryResponse), args.Error(1)
}

func (m *mockQueueService) MarkFailed(ctx context.Context, tenantID, id uuid.UUID, req transferapp.MarkFailedRequest) (*transferapp.QueueEntryResponse, error) {
	args := m.Called(ctx, tenantID, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transferapp.QueueEntryResponse), args.Error(1)
}

func (m *mockQueueService) GetQueueSummary(ctx context.Context, tenantID uuid.UUID) (*transferapp.QueueSummary, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transferapp.QueueSummary), args.Error(1)
}

func (m *mockQueueService) CleanupOldEntries(ctx context.Context, tenantID uuid.UUID, olderThanDays int) (*transferapp.CleanupResult, error) {
	args := m.Called(ctx, tenantID, olderThanDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transferapp.CleanupResult), args.Error(1)
}

func setupQueueHandler() (*mockQueueService, http.Handler) {
	svc := new(mockQueueService)
	h := NewTransferQueueHandler(svc)
	r := newEngine()
	g := r.Group("/transfer-queue")
	g.GET("/pending", h.ListPending)
	g.GET("/approved", h.ListApproved)
	g.GET("/summary", h.Summary)
	g.POST("/bulk-approve", h.BulkApprove)
	g.POST("/cleanup", h.Cleanup)
	g.POST("/process", h.Process)
	g.GET("/entries/:id", h.Get)
	g.POST("/entries/:id/approve", h.Approve)
	g.POST("/entries/:id/retry", h.Retry)
	g.POST("/entries/:id/reject", h.Reject)
	g.POST("/entries/:id/transferred", h.MarkTransferred)
	g.POST("/entries/:id/failed", h.MarkFailed)
	return svc, r
}

func sampleEntry(status string) *transferapp.QueueEntryResponse {
	return &transferapp.QueueEntryResponse{
		ID:         uuid.New(),
		TenantID:   testTenant,
		EntityType: "INVOICE",
		EntityID:   "inv-1",
		ActionType: "CREATE",
		Status:     status,
		Version:    1,
	}
}

func TestTransferQueueHandler_ListPending(t *testing.T) {
	svc, r := setupQueueHandler()
	entries := []transferapp.QueueEntryResponse{*sampleEntry("PENDING_REVIEW")}
	svc.On("GetPendingEntries", mock.Anything, testTenant,
		transferapp.PendingQuery{Limit: 20, EntityType: "INVOICE"}).Return(entries, nil)

	w := doRequest(t, r, http.MethodGet, "/transfer-queue/pending?limit=20&entity_type=INVOICE", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data.([]any), 1)
	svc.AssertExpectations(t)
}

func TestTransferQueueHandler_ListPendingRejectsBadEntityType(t *testing.T) {
	svc, r := setupQueueHandler()

	w := doRequest(t, r, http.MethodGet, "/transfer-queue/pending?entity_type=WIDGET", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Error)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "entity_type", resp.Error.Details[0].Field)
	svc.AssertNotCalled(t, "GetPendingEntries", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransferQueueHandler_ListApproved(t *testing.T) {
	svc, r := setupQueueHandler()
	svc.On("GetApprovedEntries", mock.Anything, testTenant, 0).
		Return([]transferapp.QueueEntryResponse{}, nil)

	w := doRequest(t, r, http.MethodGet, "/transfer-queue/approved", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestTransferQueueHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc, r := setupQueueHandler()
		entry := sampleEntry("APPROVED")
		svc.On("GetEntry", mock.Anything, testTenant, entry.ID).Return(entry, nil)

		w := doRequest(t, r, http.MethodGet, "/transfer-queue/entries/"+entry.ID.String(), nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w).Data.(map[string]any)
		assert.Equal(t, "APPROVED", data["status"])
	})

	t.Run("missing entry answers 404", func(t *testing.T) {
		svc, r := setupQueueHandler()
		id := uuid.New()
		svc.On("GetEntry", mock.Anything, testTenant, id).Return(nil, nil)

		w := doRequest(t, r, http.MethodGet, "/transfer-queue/entries/"+id.String(), nil, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.CodeNotFound, decode(t, w).Error.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, r := setupQueueHandler()

		w := doRequest(t, r, http.MethodGet, "/transfer-queue/entries/not-a-uuid", nil, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTransferQueueHandler_ApproveUsesActorHeader(t *testing.T) {
	svc, r := setupQueueHandler()
	entry := sampleEntry("APPROVED")
	svc.On("Approve", mock.Anything, testTenant, entry.ID,
		transferapp.ApproveRequest{ApprovedBy: "reviewer-1", Notes: "looks right"}).Return(entry, nil)

	w := doRequest(t, r, http.MethodPost, "/transfer-queue/entries/"+entry.ID.String()+"/approve",
		map[string]string{"approved_by": "ignored", "notes": "looks right"},
		map[string]string{middleware.ActorHeader: "reviewer-1"})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestTransferQueueHandler_ApproveWithoutBody(t *testing.T) {
	svc, r := setupQueueHandler()
	entry := sampleEntry("APPROVED")
	svc.On("Approve", mock.Anything, testTenant, entry.ID,
		transferapp.ApproveRequest{ApprovedBy: "reviewer-1"}).Return(entry, nil)

	w := doRequest(t, r, http.MethodPost, "/transfer-queue/entries/"+entry.ID.String()+"/approve", nil,
		map[string]string{middleware.ActorHeader: "reviewer-1"})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestTransferQueueHandler_ApproveInvalidState(t *testing.T) {
	svc, r := setupQueueHandler()
	id := uuid.New()
	svc.On("Approve", mock.Anything, testTenant, id, mock.Anything).
		Return(nil, shared.NewInvalidStateError("cannot approve entry in status TRANSFERRED"))

	w := doRequest(t, r, http.MethodPost, "/transfer-queue/entries/"+id.String()+"/approve", nil,
		map[string]string{middleware.ActorHeader: "reviewer-1"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode(t, w)
	assert.Equal(t, shared.CodeInvalidState, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "TRANSFERRED")
}

func TestTransferQueueHandler_ApproveConcurrencyConflict(t *testing.T) {
	svc, r := setupQueueHandler()
	id := uuid.New()
	svc.On("Approve", mock.Anything, testTenant, id, mock.Anything).
		Return(nil, shared.ErrConcurrencyConflict)

	w := doRequest(t, r, http.MethodPost, "/transfer-queue/entries/"+id.String()+"/approve", nil, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTransferQueueHandler_Retry(t *testing.T) {
	svc, r := setupQueueHandler()
	entry := sampleEntry("APPROVED")
	svc.On("Retry", mock.Anything, testTenant, entry.ID,
		transferapp.ApproveRequest{ApprovedBy: "ops"}).Return(entry, nil)

	w := doRequest(t, r, http.MethodPost, "/transfer-queue/entries/"+entry.ID.String()+"/retry", nil,
		map[string]string{middleware.ActorHeader: "ops"})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestTransferQueueHandler_Reject(t *testing.T) {
	t.Run("reason required", func(t *testing.T) {
		svc, r := setupQueueHandler()

		w := doRequest(t, r, http.MethodPost, "/transfer-queue/entries/"+uuid.NewString()+"/reject",
			map[string]string{"notes": "no reason"}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "reason", resp.Error.Details[0].Field)
		svc.AssertNotCalled(t, "Reject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("body rejecter used without actor header", func(t *testing.T) {
		svc, r := setupQueueHandler()
		entry := sampleEntry("REJECTED")
		svc.On("Reject", mock.Anything, testTenant, entry.ID,
			transferapp.RejectRequest{RejectedBy: "auditor", Reason: "duplicate invoice"}).Return(entry, nil)

		w := doRequest(t, r, http.MethodPost, "/transfer-queue/entries/"+entry.ID.String()+"/reject",
			map[string]string{"rejected_by": "auditor", "reason": "duplicate invoice"}, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})
}

func TestTransferQueueHandler_BulkApprove(t *testing.T) {
	svc, r := setupQueueHandler()
	ok, bad := uuid.New(), uuid.New()
	result := &transferapp.BulkApproveResult{
		Results: []transferapp.BulkItemResult{
			{EntryID: ok, Success: true},
			{EntryID: bad, Success: false, Code: shared.CodeNotFound, Error: "not found"},
		},
		Approved:              1,
		Failed:                1,
		EstimatedTransferTime: 2 * time.Minute,
	}
	svc.On("BulkApprove", mock.Anything, testTenant, transferapp.BulkApproveRequest{
		EntryIDs:   []uuid.UUID{ok, bad},
		ApprovedBy: "lead",
	}).Return(result, nil)

	w := doRequest(t, r, http.MethodPost, "/transfer-queue/bulk-approve",
		map[string]any{"entry_ids": []string{ok.String(), bad.String()}},
		map[string]string{middleware.ActorHeader: "lead"})

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]any)
	assert.EqualValues(t, 1, data["approved"])
	assert.EqualValues(t, 1, data["failed"])
	svc.AssertExpectations(t)
}

func TestTransferQueueHandler_BulkApproveRequiresIDs(t *testing.T) {
	_, r := setupQueueHandler()

	w := doRequest(t, r, http.MethodPost, "/transfer-queue/bulk-approve",
		map[string]any{"entry_ids": []string{}}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransferQueueHandler_MarkTransferred(t *testing.T) {
	svc, r := setupQueueHandler()
	entry := sampleEntry("TRANSFERRED")
	svc.On("MarkTransferred", mock.Anything, testTenant, entry.ID,
		transferapp.MarkTransferredRequest{ExternalID: "ext-77"}).Return(entry, nil)

	w := doRequest(t, r, http.MethodPost, "/transfer-queue/entries/"+entry.ID.String()+"/transferred",
		map[string]string{"external_id": "ext-77"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestTransferQueueHandler_MarkFailedPassesRetryFlag(t *testing.T) {
	svc, r := setupQueueHandler()
	entry := sampleEntry("FAILED")
	no := false
	svc.On("MarkFailed", mock.Anything, testTenant, entry.ID,
		transferapp.MarkFailedRequest{Error: "timeout", IncrementRetry: &no}).Return(entry, nil)

	w := doRequest(t, r, http.MethodPost, "/transfer-queue/entries/"+entry.ID.String()+"/failed",
		map[string]any{"error": "timeout", "increment_retry": false}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestTransferQueueHandler_Summary(t *testing.T) {
	svc, r := setupQueueHandler()
	svc.On("GetQueueSummary", mock.Anything, testTenant).Return(&transferapp.QueueSummary{
		ByStatus:           map[string]int64{"PENDING_REVIEW": 3},
		ByEntityType:       map[string]int64{"INVOICE": 3},
		TotalPendingReview: 3,
	}, nil)

	w := doRequest(t, r, http.MethodGet, "/transfer-queue/summary", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]any)
	assert.EqualValues(t, 3, data["total_pending_review"])
}

func TestTransferQueueHandler_Cleanup(t *testing.T) {
	t.Run("deletes", func(t *testing.T) {
		svc, r := setupQueueHandler()
		svc.On("CleanupOldEntries", mock.Anything, testTenant, 30).
			Return(&transferapp.CleanupResult{Deleted: 4}, nil)

		w := doRequest(t, r, http.MethodPost, "/transfer-queue/cleanup",
			map[string]int{"older_than_days": 30}, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 4, decode(t, w).Data.(map[string]any)["deleted"])
	})

	t.Run("omitted age uses the configured retention", func(t *testing.T) {
		svc, r := setupQueueHandler()
		svc.On("CleanupOldEntries", mock.Anything, testTenant, 0).
			Return(&transferapp.CleanupResult{Deleted: 1}, nil).Twice()

		w := doRequest(t, r, http.MethodPost, "/transfer-queue/cleanup", map[string]int{}, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doRequest(t, r, http.MethodPost, "/transfer-queue/cleanup", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("negative age is rejected", func(t *testing.T) {
		_, r := setupQueueHandler()

		w := doRequest(t, r, http.MethodPost, "/transfer-queue/cleanup",
			map[string]int{"older_than_days": -5}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTransferQueueHandler_Process(t *testing.T) {
	svc, r := setupQueueHandler()
	svc.On("ProcessChanges", mock.Anything, testTenant).
		Return(&transferapp.ProcessResult{NewEntries: 2, Duplicates: 1}, nil)

	w := doRequest(t, r, http.MethodPost, "/transfer-queue/process", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]any)
	assert.EqualValues(t, 2, data["new_entries"])
	assert.EqualValues(t, 1, data["duplicates"])
}

func TestTransferQueueHandler_RequiresTenant(t *testing.T) {
	_, r := setupQueueHandler()

	w := doRequest(t, r, http.MethodGet, "/transfer-queue/summary", nil,
		map[string]string{middleware.TenantHeader: ""})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
