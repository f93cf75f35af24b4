package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/logger"
	"github.com/ledgerbridge/backend/internal/infrastructure/telemetry"
	"github.com/ledgerbridge/backend/internal/interfaces/http/dto"
	"github.com/ledgerbridge/backend/internal/interfaces/http/handler"
	"github.com/ledgerbridge/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers mounted by NewEngine. A nil handler
// leaves its routes unregistered.
type Handlers struct {
	TransferQueue *handler.TransferQueueHandler
	Integration   *handler.IntegrationHandler
	AuditLog      *handler.AuditLogHandler
	System        *handler.SystemHandler
}

// EngineConfig configures the middleware stack
type EngineConfig struct {
	ServiceName      string
	TracingEnabled   bool
	TrustedProxies   []string
	CORS             middleware.CORSConfig
	MaxBodySize      int64
	IdempotencyStore shared.IdempotencyStore
	Idempotency      shared.IdempotencyConfig
	Metrics          *telemetry.Metrics
	Logger           *zap.Logger
}

// NewEngine builds the gin engine with the full middleware stack and every
// route registered.
//
// Order: request id, recovery, access log, tracing, security headers, CORS,
// body limit, metrics. Versioned routes additionally resolve the tenant,
// tag the span and apply idempotency keys.
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(cfg.ServiceName, cfg.TracingEnabled))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	if cfg.Metrics != nil {
		engine.Use(cfg.Metrics.GinMiddleware())
		engine.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.CodeRouteNotFound,
			"route "+c.Request.Method+" "+c.Request.URL.Path+" does not exist", middleware.GetRequestID(c)))
	})

	if h.System != nil {
		engine.GET("/health", h.System.Health)
		engine.GET("/system/info", h.System.GetSystemInfo)
	}

	r := NewRouter(engine, WithAPIMiddleware(
		middleware.Identity(),
		middleware.SpanAttributes(),
		middleware.Idempotency(cfg.IdempotencyStore, cfg.Idempotency, log),
	))
	if h.TransferQueue != nil {
		r.Add(TransferQueueRoutes(h.TransferQueue))
	}
	if h.Integration != nil {
		r.Add(IntegrationRoutes(h.Integration))
	}
	if h.AuditLog != nil {
		r.Add(AuditLogRoutes(h.AuditLog))
	}
	r.Mount()

	return engine
}

// TransferQueueRoutes mounts the review queue under /transfer-queue
func TransferQueueRoutes(h *handler.TransferQueueHandler) *Resource {
	g := NewResource("/transfer-queue")
	g.GET("/pending", h.ListPending)
	g.GET("/approved", h.ListApproved)
	g.GET("/summary", h.Summary)
	g.POST("/bulk-approve", h.BulkApprove)
	g.POST("/cleanup", h.Cleanup)
	g.POST("/process", h.Process)

	entries := g.Nest("/entries/:id")
	entries.GET("", h.Get)
	entries.POST("/approve", h.Approve)
	entries.POST("/retry", h.Retry)
	entries.POST("/reject", h.Reject)
	entries.POST("/transferred", h.MarkTransferred)
	entries.POST("/failed", h.MarkFailed)
	return g
}

// IntegrationRoutes mounts configuration and webhook management under /integrations
func IntegrationRoutes(h *handler.IntegrationHandler) *Resource {
	g := NewResource("/integrations")

	configs := g.Nest("/configs")
	configs.PUT("", h.Upsert)
	configs.GET("/:platform", h.GetActive)
	configs.DELETE("/:platform", h.Deactivate)
	configs.POST("/:platform/validate", h.Validate)
	configs.GET("/:platform/breaker", h.Breaker)
	configs.POST("/:platform/outcome", h.RecordOutcome)
	configs.PUT("/:platform/rate-limit", h.UpdateRateLimit)
	configs.POST("/:platform/revoke", h.Revoke)

	webhooks := g.Nest("/webhooks")
	webhooks.GET("", h.ListWebhooks)
	webhooks.PUT("", h.UpsertWebhook)
	webhooks.POST("/:id/outcome", h.RecordWebhookOutcome)
	return g
}

// AuditLogRoutes mounts the audit trail under /audit-logs
func AuditLogRoutes(h *handler.AuditLogHandler) *Resource {
	g := NewResource("/audit-logs")
	g.GET("", h.List)
	g.GET("/pending-review", h.PendingReview)
	g.GET("/entries/:id", h.Get)
	g.POST("/entries/:id/review", h.Review)
	return g
}
