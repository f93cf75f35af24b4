package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/infrastructure/logger"
	"github.com/ledgerbridge/backend/internal/interfaces/http/dto"
)

const (
	// TenantHeader identifies the tenant a request acts for
	TenantHeader = "X-Tenant-ID"
	// ActorHeader names the user performing the request
	ActorHeader = "X-User-ID"

	tenantIDKey = "tenant_id"
	actorKey    = "actor"

	maxActorLength = 100
)

// Identity resolves the tenant and the acting user from the request headers.
// Authentication happens upstream; a missing or malformed tenant id is
// rejected with 401.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(TenantHeader))
		tenantID, err := uuid.Parse(raw)
		if raw == "" || err != nil || tenantID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.CodeUnauthorized, "a valid "+TenantHeader+" header is required", GetRequestID(c)))
			return
		}

		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if len(actor) > maxActorLength {
			actor = actor[:maxActorLength]
		}

		c.Set(tenantIDKey, tenantID)
		ctx := logger.WithTenantID(c.Request.Context(), tenantID.String())
		if actor != "" {
			c.Set(actorKey, actor)
			ctx = logger.WithActor(ctx, actor)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetTenantID returns the tenant resolved by Identity
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(tenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetActor returns the acting user, or "" when the header was absent
func GetActor(c *gin.Context) string {
	return c.GetString(actorKey)
}
