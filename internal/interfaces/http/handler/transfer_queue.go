package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	transferapp "github.com/ledgerbridge/backend/internal/application/transfer"
)

// TransferQueueService is the part of the queue service exposed over HTTP
type TransferQueueService interface {
	ProcessChanges(ctx context.Context, tenantID uuid.UUID) (*transferapp.ProcessResult, error)
	GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*transferapp.QueueEntryResponse, error)
	GetPendingEntries(ctx context.Context, tenantID uuid.UUID, q transferapp.PendingQuery) ([]transferapp.QueueEntryResponse, error)
	GetApprovedEntries(ctx context.Context, tenantID uuid.UUID, limit int) ([]transferapp.QueueEntryResponse, error)
	Approve(ctx context.Context, tenantID, id uuid.UUID, req transferapp.ApproveRequest) (*transferapp.QueueEntryResponse, error)
	Retry(ctx context.Context, tenantID, id uuid.UUID, req transferapp.ApproveRequest) (*transferapp.QueueEntryResponse, error)
	Reject(ctx context.Context, tenantID, id uuid.UUID, req transferapp.RejectRequest) (*transferapp.QueueEntryResponse, error)
	BulkApprove(ctx context.Context, tenantID uuid.UUID, req transferapp.BulkApproveRequest) (*transferapp.BulkApproveResult, error)
	MarkTransferred(ctx context.Context, tenantID, id uuid.UUID, req transferapp.MarkTransferredRequest) (*transferapp.QueueEntryResponse, error)
	MarkFailed(ctx context.Context, tenantID, id uuid.UUID, req transferapp.MarkFailedRequest) (*transferapp.QueueEntryResponse, error)
	GetQueueSummary(ctx context.Context, tenantID uuid.UUID) (*transferapp.QueueSummary, error)
	CleanupOldEntries(ctx context.Context, tenantID uuid.UUID, olderThanDays int) (*transferapp.CleanupResult, error)
}

// TransferQueueHandler serves the review queue endpoints
type TransferQueueHandler struct {
	BaseHandler
	service TransferQueueService
}

// NewTransferQueueHandler creates a new TransferQueueHandler
func NewTransferQueueHandler(service TransferQueueService) *TransferQueueHandler {
	return &TransferQueueHandler{service: service}
}

// ApprovedQuery limits the approved-entries pull
type ApprovedQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// CleanupRequest removes finished entries older than the given age. Zero or
// an empty body falls back to the configured retention.
//
//	@Description	Request body for purging finished queue entries
type CleanupRequest struct {
	OlderThanDays int `json:"older_than_days" binding:"omitempty,min=1,max=3650" example:"30"`
}

// ListPending godoc
// @ID           listPendingTransferEntries
//
//	@Summary		List entries awaiting review
//	@Tags			transfer-queue
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param			limit		query		int		false	"Maximum entries"
//	@Param			entity_type	query		string	false	"CONTACT, COMPANY, INVOICE or LINE_ITEM"
//	@Success		200			{object}	dto.Response{data=[]transferapp.QueueEntryResponse}
//	@Failure		400			{object}	dto.Response
//	@Router			/transfer-queue/pending [get]
func (h *TransferQueueHandler) ListPending(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q transferapp.PendingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}
	entries, err := h.service.GetPendingEntries(c.Request.Context(), tenantID, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// ListApproved godoc
// @ID           listApprovedTransferEntries
//
//	@Summary		List approved entries due for transfer
//	@Tags			transfer-queue
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param			limit		query		int		false	"Maximum entries"
//	@Success		200			{object}	dto.Response{data=[]transferapp.QueueEntryResponse}
//	@Router			/transfer-queue/approved [get]
func (h *TransferQueueHandler) ListApproved(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q ApprovedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}
	entries, err := h.service.GetApprovedEntries(c.Request.Context(), tenantID, q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// Get godoc
// @ID           getTransferEntry
//
//	@Summary		Get a queue entry
//	@Tags			transfer-queue
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param			id			path		string	true	"Entry ID"
//	@Success		200			{object}	dto.Response{data=transferapp.QueueEntryResponse}
//	@Failure		404			{object}	dto.Response
//	@Router			/transfer-queue/entries/{id} [get]
func (h *TransferQueueHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	entry, err := h.service.GetEntry(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if entry == nil {
		h.NotFound(c, "queue entry not found")
		return
	}
	h.Success(c, entry)
}

// Approve godoc
// @ID           approveTransferEntry
//
//	@Summary		Approve a pending or failed entry
//	@Tags			transfer-queue
//	@Accept			json
//	@Produce		json
//	@Param			X-Tenant-ID	header		string						true	"Tenant ID"
//	@Param			X-User-ID	header		string						false	"Approver"
//	@Param			id			path		string						true	"Entry ID"
//	@Param			request		body		transferapp.ApproveRequest	false	"Approval"
//	@Success		200			{object}	dto.Response{data=transferapp.QueueEntryResponse}
//	@Failure		404			{object}	dto.Response
//	@Failure		409			{object}	dto.Response
//	@Failure		422			{object}	dto.Response
//	@Router			/transfer-queue/entries/{id}/approve [post]
func (h *TransferQueueHandler) Approve(c *gin.Context) {
	h.approveLike(c, h.service.Approve)
}

// Retry re-approves a FAILED entry with a fresh retry budget
//
//	@Summary	Retry a failed entry
//	@Tags		transfer-queue
//	@Router		/transfer-queue/entries/{id}/retry [post]
func (h *TransferQueueHandler) Retry(c *gin.Context) {
	h.approveLike(c, h.service.Retry)
}

func (h *TransferQueueHandler) approveLike(
	c *gin.Context,
	call func(context.Context, uuid.UUID, uuid.UUID, transferapp.ApproveRequest) (*transferapp.QueueEntryResponse, error),
) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req transferapp.ApproveRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	req.ApprovedBy = actorOr(c, req.ApprovedBy)

	entry, err := call(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// Reject godoc
// @ID           rejectTransferEntry
//
//	@Summary		Reject a pending entry
//	@Tags			transfer-queue
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string						true	"Entry ID"
//	@Param			request		body		transferapp.RejectRequest	true	"Rejection"
//	@Success		200			{object}	dto.Response{data=transferapp.QueueEntryResponse}
//	@Failure		400			{object}	dto.Response
//	@Failure		422			{object}	dto.Response
//	@Router			/transfer-queue/entries/{id}/reject [post]
func (h *TransferQueueHandler) Reject(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req transferapp.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	req.RejectedBy = actorOr(c, req.RejectedBy)

	entry, err := h.service.Reject(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// BulkApprove godoc
// @ID           bulkApproveTransferEntries
//
//	@Summary		Approve several entries independently
//	@Description	Each id succeeds or fails on its own; the response lists per-id results
//	@Tags			transfer-queue
//	@Accept			json
//	@Produce		json
//	@Param			request		body		transferapp.BulkApproveRequest	true	"Entry ids"
//	@Success		200			{object}	dto.Response{data=transferapp.BulkApproveResult}
//	@Router			/transfer-queue/bulk-approve [post]
func (h *TransferQueueHandler) BulkApprove(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req transferapp.BulkApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	req.ApprovedBy = actorOr(c, req.ApprovedBy)

	result, err := h.service.BulkApprove(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// MarkTransferred godoc
// @ID           markTransferEntryTransferred
//
//	@Summary		Record a successful transfer
//	@Tags			transfer-queue
//	@Param			id			path		string								true	"Entry ID"
//	@Param			request		body		transferapp.MarkTransferredRequest	true	"External id"
//	@Success		200			{object}	dto.Response{data=transferapp.QueueEntryResponse}
//	@Router			/transfer-queue/entries/{id}/transferred [post]
func (h *TransferQueueHandler) MarkTransferred(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req transferapp.MarkTransferredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	entry, err := h.service.MarkTransferred(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// MarkFailed godoc
// @ID           markTransferEntryFailed
//
//	@Summary		Record a failed transfer attempt
//	@Tags			transfer-queue
//	@Param			id			path		string							true	"Entry ID"
//	@Param			request		body		transferapp.MarkFailedRequest	true	"Failure"
//	@Success		200			{object}	dto.Response{data=transferapp.QueueEntryResponse}
//	@Router			/transfer-queue/entries/{id}/failed [post]
func (h *TransferQueueHandler) MarkFailed(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req transferapp.MarkFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	entry, err := h.service.MarkFailed(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// Summary godoc
// @ID           getTransferQueueSummary
//
//	@Summary		Queue counts by status and entity type
//	@Tags			transfer-queue
//	@Success		200			{object}	dto.Response{data=transferapp.QueueSummary}
//	@Router			/transfer-queue/summary [get]
func (h *TransferQueueHandler) Summary(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	summary, err := h.service.GetQueueSummary(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Cleanup godoc
// @ID           cleanupTransferQueue
//
//	@Summary		Delete finished entries older than a number of days
//	@Tags			transfer-queue
//	@Param			request		body		CleanupRequest	false	"Age"
//	@Success		200			{object}	dto.Response{data=transferapp.CleanupResult}
//	@Router			/transfer-queue/cleanup [post]
func (h *TransferQueueHandler) Cleanup(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BindingError(c, err)
		return
	}
	result, err := h.service.CleanupOldEntries(c.Request.Context(), tenantID, req.OlderThanDays)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Process godoc
// @ID           processTransferChanges
//
//	@Summary		Run change detection now
//	@Description	Pulls detected changes from the change detector and enqueues them for review
//	@Tags			transfer-queue
//	@Success		200			{object}	dto.Response{data=transferapp.ProcessResult}
//	@Failure		502			{object}	dto.Response
//	@Router			/transfer-queue/process [post]
func (h *TransferQueueHandler) Process(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	result, err := h.service.ProcessChanges(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
