package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	auditapp "github.com/ledgerbridge/backend/internal/application/audit"
)

// AuditLogService is the read side of the configuration audit log
type AuditLogService interface {
	List(ctx context.Context, tenantID uuid.UUID, q auditapp.ListQuery) (*auditapp.ListResult, error)
	GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*auditapp.LogEntryResponse, error)
	ListPendingReview(ctx context.Context, tenantID uuid.UUID, limit int) ([]auditapp.LogEntryResponse, error)
	MarkReviewed(ctx context.Context, tenantID, id uuid.UUID, reviewer string) (*auditapp.LogEntryResponse, error)
}

// AuditLogHandler serves the configuration audit trail
type AuditLogHandler struct {
	BaseHandler
	service AuditLogService
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(service AuditLogService) *AuditLogHandler {
	return &AuditLogHandler{service: service}
}

// List godoc
// @ID           listAuditLogs
//
//	@Summary		List audit entries, newest first
//	@Tags			audit-logs
//	@Produce		json
//	@Param			X-Tenant-ID		header		string	true	"Tenant ID"
//	@Param			entity_type		query		string	false	"Aggregate type"
//	@Param			action			query		string	false	"CREATE, UPDATE, DELETE, VALIDATE or REVOKE"
//	@Param			performed_by	query		string	false	"Actor"
//	@Param			risk_level		query		string	false	"LOW, MEDIUM, HIGH or CRITICAL"
//	@Param			platform		query		string	false	"Platform"
//	@Param			from			query		string	false	"RFC3339 lower bound"
//	@Param			to				query		string	false	"RFC3339 upper bound"
//	@Param			limit			query		int		false	"Page size"
//	@Param			offset			query		int		false	"Offset"
//	@Success		200				{object}	dto.Response{data=[]auditapp.LogEntryResponse}
//	@Failure		400				{object}	dto.Response
//	@Router			/audit-logs [get]
func (h *AuditLogHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q auditapp.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}
	result, err := h.service.List(c.Request.Context(), tenantID, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Limit, result.Offset)
}

// PendingReview godoc
// @ID           listAuditLogsPendingReview
//
//	@Summary		HIGH and CRITICAL entries awaiting sign-off
//	@Tags			audit-logs
//	@Param			limit	query		int	false	"Maximum entries"
//	@Success		200		{object}	dto.Response{data=[]auditapp.LogEntryResponse}
//	@Router			/audit-logs/pending-review [get]
func (h *AuditLogHandler) PendingReview(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	entries, err := h.service.ListPendingReview(c.Request.Context(), tenantID, queryInt(c, "limit", 0))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// Get godoc
// @ID           getAuditLog
//
//	@Summary		Get one audit entry
//	@Tags			audit-logs
//	@Param			id	path		string	true	"Audit entry ID"
//	@Success		200	{object}	dto.Response{data=auditapp.LogEntryResponse}
//	@Failure		404	{object}	dto.Response
//	@Router			/audit-logs/entries/{id} [get]
func (h *AuditLogHandler) Get(c *gin.Context) {
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
		h.NotFound(c, "audit entry not found")
		return
	}
	h.Success(c, entry)
}

// Review godoc
// @ID           reviewAuditLog
//
//	@Summary		Sign off an entry that requires review
//	@Tags			audit-logs
//	@Param			id			path		string					true	"Audit entry ID"
//	@Param			request		body		auditapp.ReviewRequest	false	"Reviewer, defaults to X-User-ID"
//	@Success		200			{object}	dto.Response{data=auditapp.LogEntryResponse}
//	@Failure		404			{object}	dto.Response
//	@Failure		422			{object}	dto.Response
//	@Router			/audit-logs/entries/{id}/review [post]
func (h *AuditLogHandler) Review(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req auditapp.ReviewRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	entry, err := h.service.MarkReviewed(c.Request.Context(), tenantID, id, actorOr(c, req.ReviewedBy))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}
