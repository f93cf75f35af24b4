package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/logger"
	"github.com/ledgerbridge/backend/internal/interfaces/http/dto"
	"github.com/ledgerbridge/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides the response helpers shared by all handlers
type BaseHandler struct{}

// Success sends a 200 envelope
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 envelope with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, limit, offset int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, limit, offset))
}

// Created sends a 201 envelope
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error envelope with the status derived from code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.HTTPStatus(code), dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// NotFound sends a 404 envelope
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, dto.CodeNotFound, message)
}

// BadRequest sends a 400 envelope
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.CodeBadRequest, message)
}

// BindingError answers a failed ShouldBind call, with field details when
// the validator produced them
func (h *BaseHandler) BindingError(c *gin.Context, err error) {
	if details := middleware.ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			"request validation failed", middleware.GetRequestID(c), details))
		return
	}
	h.Error(c, dto.CodeValidation, "malformed request: "+err.Error())
}

// HandleError maps a service error onto the envelope. Domain errors keep
// their code; anything else is logged and reported as INTERNAL_ERROR.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, domainErr.Code, domainErr.Message)
		return
	}
	logger.FromContext(c.Request.Context()).Error("Unhandled request error", zap.Error(err))
	h.Error(c, dto.CodeInternal, "an unexpected error occurred")
}

// tenantID returns the tenant resolved by the Identity middleware, writing
// a 401 when it is missing
func (h *BaseHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetTenantID(c)
	if !ok {
		h.Error(c, dto.CodeUnauthorized, "tenant context missing")
		return uuid.Nil, false
	}
	return id, true
}

// pathUUID parses a UUID path parameter, writing a 400 when malformed
func (h *BaseHandler) pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, dto.CodeValidation, "invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// pathPlatform parses the :platform path parameter
func (h *BaseHandler) pathPlatform(c *gin.Context) (integration.Platform, bool) {
	p, err := integration.ParsePlatform(c.Param("platform"))
	if err != nil {
		h.HandleError(c, err)
		return "", false
	}
	return p, true
}

// actorOr prefers the X-User-ID header and falls back to a body field
func actorOr(c *gin.Context, fromBody string) string {
	if actor := middleware.GetActor(c); actor != "" {
		return actor
	}
	return fromBody
}

// bindOptionalJSON binds a body that may be omitted entirely
func (h *BaseHandler) bindOptionalJSON(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		h.BindingError(c, err)
		return false
	}
	return true
}

// queryInt reads an integer query parameter, falling back to def
func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return def
}
