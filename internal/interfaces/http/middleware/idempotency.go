package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/logger"
	"github.com/ledgerbridge/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// IdempotencyHeader carries the client-chosen key of a mutating request
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 128

// Idempotency applies a mutating request at most once per key. The key is
// scoped to tenant and route; a replay while the key is held answers 409.
// A request that fails (status >= 400) releases its key so it may be retried.
// Requests without the header pass through.
func Idempotency(store shared.IdempotencyStore, cfg shared.IdempotencyConfig, base *zap.Logger) gin.HandlerFunc {
	if store == nil || !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponse(dto.CodeBadRequest, IdempotencyHeader+" is too long", GetRequestID(c)))
			return
		}

		tenant := ""
		if id, ok := GetTenantID(c); ok {
			tenant = id.String()
		}
		scoped := tenant + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		ctx := c.Request.Context()
		log := logger.FromContextOr(ctx, base)
		fresh, err := store.MarkProcessed(ctx, scoped, ttl)
		if err != nil {
			// fail open
			log.Warn("Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !fresh {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponse(
				dto.CodeIdempotencyInProgress,
				"a request with this idempotency key was already accepted",
				GetRequestID(c)))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			forgetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := store.Forget(forgetCtx, scoped); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}
}
