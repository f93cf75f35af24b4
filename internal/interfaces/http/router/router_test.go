package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/cache"
	"github.com/ledgerbridge/backend/internal/infrastructure/telemetry"
	"github.com/ledgerbridge/backend/internal/interfaces/http/dto"
	"github.com/ledgerbridge/backend/internal/interfaces/http/handler"
	"github.com/ledgerbridge/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.version)
	assert.Empty(t, r.resources)

	r = NewRouter(gin.New(), WithVersion("v2"))
	assert.Equal(t, "v2", r.version)
}

func TestRouter_MountScopesAPIMiddleware(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIMiddleware(func(c *gin.Context) {
		c.Header("X-Api", "yes")
		c.Next()
	}))

	res := NewResource("/test")
	res.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.Add(res).Mount()
	engine.GET("/outside", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "yes", w.Header().Get("X-Api"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/outside", nil))
	assert.Empty(t, w.Header().Get("X-Api"))
}

func TestResource(t *testing.T) {
	t.Run("every method is routed", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
		res := NewResource("/test")
		assert.Equal(t, "/test", res.Prefix())
		res.GET("/items", ok).POST("/items", ok).PUT("/items", ok).DELETE("/items", ok)
		res.Mount(engine.Group("/api/v1"))

		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(method, "/api/v1/test/items", nil))
			assert.Equal(t, http.StatusNoContent, w.Code, method)
		}
	})

	t.Run("nested resources inherit middleware", func(t *testing.T) {
		engine := gin.New()
		res := NewResource("/test").Use(func(c *gin.Context) {
			c.Header("X-Group", "test")
			c.Next()
		})
		res.Nest("/items/:id").GET("", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
		res.Mount(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/items/42", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "42", w.Body.String())
		assert.Equal(t, "test", w.Header().Get("X-Group"))
	})
}

// newTestEngine mounts real handlers over nil services; only requests that
// are rejected before reaching a service may be sent.
func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	return NewEngine(EngineConfig{
		ServiceName:      "ledgerbridge-test",
		CORS:             middleware.DefaultCORSConfig(),
		MaxBodySize:      1 << 20,
		IdempotencyStore: store,
		Idempotency:      shared.DefaultIdempotencyConfig(),
		Metrics:          telemetry.NewMetrics(),
	}, Handlers{
		TransferQueue: handler.NewTransferQueueHandler(nil),
		Integration:   handler.NewIntegrationHandler(nil, nil),
		AuditLog:      handler.NewAuditLogHandler(nil),
		System:        handler.NewSystemHandler("ledgerbridge", "test", nil),
	})
}

func TestNewEngine_RoutesRegistered(t *testing.T) {
	engine := newTestEngine(t)

	registered := map[string]bool{}
	for _, ri := range engine.Routes() {
		registered[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"GET /api/v1/transfer-queue/pending",
		"GET /api/v1/transfer-queue/approved",
		"GET /api/v1/transfer-queue/summary",
		"POST /api/v1/transfer-queue/bulk-approve",
		"POST /api/v1/transfer-queue/cleanup",
		"POST /api/v1/transfer-queue/process",
		"GET /api/v1/transfer-queue/entries/:id",
		"POST /api/v1/transfer-queue/entries/:id/approve",
		"POST /api/v1/transfer-queue/entries/:id/retry",
		"POST /api/v1/transfer-queue/entries/:id/reject",
		"POST /api/v1/transfer-queue/entries/:id/transferred",
		"POST /api/v1/transfer-queue/entries/:id/failed",
		"PUT /api/v1/integrations/configs",
		"GET /api/v1/integrations/configs/:platform",
		"DELETE /api/v1/integrations/configs/:platform",
		"POST /api/v1/integrations/configs/:platform/validate",
		"GET /api/v1/integrations/configs/:platform/breaker",
		"POST /api/v1/integrations/configs/:platform/outcome",
		"PUT /api/v1/integrations/configs/:platform/rate-limit",
		"POST /api/v1/integrations/configs/:platform/revoke",
		"GET /api/v1/integrations/webhooks",
		"PUT /api/v1/integrations/webhooks",
		"POST /api/v1/integrations/webhooks/:id/outcome",
		"GET /api/v1/audit-logs",
		"GET /api/v1/audit-logs/pending-review",
		"GET /api/v1/audit-logs/entries/:id",
		"POST /api/v1/audit-logs/entries/:id/review",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestNewEngine_Health(t *testing.T) {
	engine := newTestEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestNewEngine_APIRequiresTenant(t *testing.T) {
	engine := newTestEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/transfer-queue/summary", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.CodeUnauthorized, resp.Error.Code)
}

func TestNewEngine_NoRoute(t *testing.T) {
	engine := newTestEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.CodeRouteNotFound, resp.Error.Code)
}

func TestNewEngine_BadPathParameterNeverReachesService(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfer-queue/entries/not-a-uuid", nil)
	req.Header.Set(middleware.TenantHeader, uuid.NewString())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewEngine_BodyLimit(t *testing.T) {
	engine := newTestEngine(t)

	body := `{"reason":"` + strings.Repeat("x", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfer-queue/entries/"+uuid.NewString()+"/reject",
		strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeader, uuid.NewString())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNewEngine_MetricsExposed(t *testing.T) {
	engine := newTestEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/health")
}
