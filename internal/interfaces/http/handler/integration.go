package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	integrationapp "github.com/ledgerbridge/backend/internal/application/integration"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/interfaces/http/middleware"
)

// IntegrationConfigService is the part of the configuration service exposed over HTTP
type IntegrationConfigService interface {
	GetActiveConfig(ctx context.Context, tenantID uuid.UUID, platform integration.Platform) (*integrationapp.ActiveConfig, error)
	UpsertConfig(ctx context.Context, tenantID uuid.UUID, req integrationapp.UpsertConfigRequest, actor string) (*integrationapp.UpsertConfigResult, error)
	ValidateConfig(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, actor string) (*integrationapp.ValidateResult, error)
	GetBreakerState(ctx context.Context, tenantID uuid.UUID, platform integration.Platform) (*integrationapp.BreakerStateResponse, error)
	RecordIntegrationOutcome(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, success bool) error
	UpdateRateLimit(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, req integrationapp.RateLimitRequest) (*integrationapp.ConfigResponse, error)
	DeactivateConfig(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, actor string) (*integrationapp.ConfigResponse, error)
	RevokeCredentials(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, actor string) (*integrationapp.ConfigResponse, error)
}

// WebhookConfigService is the part of the webhook service exposed over HTTP.
// Signing secrets are never served.
type WebhookConfigService interface {
	ListWebhooks(ctx context.Context, tenantID uuid.UUID) ([]integrationapp.WebhookResponse, error)
	UpsertWebhookConfig(ctx context.Context, tenantID uuid.UUID, req integrationapp.UpsertWebhookRequest, actor string) (*integrationapp.WebhookResponse, error)
	RecordWebhookOutcome(ctx context.Context, tenantID, webhookID uuid.UUID, req integrationapp.OutcomeRequest) (*integrationapp.WebhookResponse, error)
}

// IntegrationHandler serves integration configuration and webhook endpoints
type IntegrationHandler struct {
	BaseHandler
	configs  IntegrationConfigService
	webhooks WebhookConfigService
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(configs IntegrationConfigService, webhooks WebhookConfigService) *IntegrationHandler {
	return &IntegrationHandler{configs: configs, webhooks: webhooks}
}

// GetActive godoc
// @ID           getActiveIntegrationConfig
//
//	@Summary		Get the active configuration of a platform
//	@Description	Secret values are never returned; stored_secrets names the fields that are set
//	@Tags			integrations
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param			platform	path		string	true	"CRM, PAYMENTS or ACCOUNTING"
//	@Success		200			{object}	dto.Response{data=integrationapp.ActiveConfig}
//	@Failure		404			{object}	dto.Response
//	@Failure		500			{object}	dto.Response	"CONFIG_DECRYPTION_FAILED"
//	@Router			/integrations/configs/{platform} [get]
func (h *IntegrationHandler) GetActive(c *gin.Context) {
	tenantID, platform, ok := h.tenantAndPlatform(c)
	if !ok {
		return
	}
	active, err := h.configs.GetActiveConfig(c.Request.Context(), tenantID, platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if active == nil {
		h.NotFound(c, "no active configuration for "+string(platform))
		return
	}
	h.Success(c, active)
}

// Upsert godoc
// @ID           upsertIntegrationConfig
//
//	@Summary		Create or update an integration configuration
//	@Description	Omitted secret fields keep their stored value; an empty string clears it
//	@Tags			integrations
//	@Accept			json
//	@Produce		json
//	@Param			request		body		integrationapp.UpsertConfigRequest	true	"Configuration"
//	@Success		200			{object}	dto.Response{data=integrationapp.UpsertConfigResult}
//	@Success		201			{object}	dto.Response{data=integrationapp.UpsertConfigResult}
//	@Failure		400			{object}	dto.Response
//	@Failure		409			{object}	dto.Response
//	@Router			/integrations/configs [put]
func (h *IntegrationHandler) Upsert(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req integrationapp.UpsertConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	result, err := h.configs.UpsertConfig(c.Request.Context(), tenantID, req, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Created {
		h.Created(c, result)
		return
	}
	h.Success(c, result)
}

// Validate godoc
// @ID           validateIntegrationConfig
//
//	@Summary		Probe the platform with the stored credentials
//	@Tags			integrations
//	@Param			platform	path		string	true	"Platform"
//	@Success		200			{object}	dto.Response{data=integrationapp.ValidateResult}
//	@Failure		404			{object}	dto.Response
//	@Router			/integrations/configs/{platform}/validate [post]
func (h *IntegrationHandler) Validate(c *gin.Context) {
	tenantID, platform, ok := h.tenantAndPlatform(c)
	if !ok {
		return
	}
	result, err := h.configs.ValidateConfig(c.Request.Context(), tenantID, platform, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Breaker godoc
// @ID           getIntegrationBreaker
//
//	@Summary		Circuit breaker state of a platform
//	@Tags			integrations
//	@Param			platform	path		string	true	"Platform"
//	@Success		200			{object}	dto.Response{data=integrationapp.BreakerStateResponse}
//	@Failure		404			{object}	dto.Response
//	@Router			/integrations/configs/{platform}/breaker [get]
func (h *IntegrationHandler) Breaker(c *gin.Context) {
	tenantID, platform, ok := h.tenantAndPlatform(c)
	if !ok {
		return
	}
	state, err := h.configs.GetBreakerState(c.Request.Context(), tenantID, platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if state == nil {
		h.NotFound(c, "no active configuration for "+string(platform))
		return
	}
	h.Success(c, state)
}

// RecordOutcome feeds one platform call result into the breaker.
//
//	@Summary	Record a platform call outcome
//	@Tags		integrations
//	@Router		/integrations/configs/{platform}/outcome [post]
func (h *IntegrationHandler) RecordOutcome(c *gin.Context) {
	tenantID, platform, ok := h.tenantAndPlatform(c)
	if !ok {
		return
	}
	var req integrationapp.OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	if err := h.configs.RecordIntegrationOutcome(c.Request.Context(), tenantID, platform, req.Success); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Breaker(c)
}

// UpdateRateLimit godoc
// @ID           updateIntegrationRateLimit
//
//	@Summary		Record the platform's advertised rate-limit window
//	@Tags			integrations
//	@Param			platform	path		string							true	"Platform"
//	@Param			request		body		integrationapp.RateLimitRequest	true	"Window"
//	@Success		200			{object}	dto.Response{data=integrationapp.ConfigResponse}
//	@Router			/integrations/configs/{platform}/rate-limit [put]
func (h *IntegrationHandler) UpdateRateLimit(c *gin.Context) {
	tenantID, platform, ok := h.tenantAndPlatform(c)
	if !ok {
		return
	}
	var req integrationapp.RateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	cfg, err := h.configs.UpdateRateLimit(c.Request.Context(), tenantID, platform, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// Deactivate godoc
// @ID           deactivateIntegrationConfig
//
//	@Summary		Soft-delete the active configuration
//	@Tags			integrations
//	@Param			platform	path		string	true	"Platform"
//	@Success		200			{object}	dto.Response{data=integrationapp.ConfigResponse}
//	@Failure		404			{object}	dto.Response
//	@Router			/integrations/configs/{platform} [delete]
func (h *IntegrationHandler) Deactivate(c *gin.Context) {
	tenantID, platform, ok := h.tenantAndPlatform(c)
	if !ok {
		return
	}
	cfg, err := h.configs.DeactivateConfig(c.Request.Context(), tenantID, platform, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// Revoke godoc
// @ID           revokeIntegrationCredentials
//
//	@Summary		Wipe every stored secret of the active configuration
//	@Tags			integrations
//	@Param			platform	path		string	true	"Platform"
//	@Success		200			{object}	dto.Response{data=integrationapp.ConfigResponse}
//	@Router			/integrations/configs/{platform}/revoke [post]
func (h *IntegrationHandler) Revoke(c *gin.Context) {
	tenantID, platform, ok := h.tenantAndPlatform(c)
	if !ok {
		return
	}
	cfg, err := h.configs.RevokeCredentials(c.Request.Context(), tenantID, platform, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// ListWebhooks godoc
// @ID           listWebhooks
//
//	@Summary		List the tenant's inbound webhooks
//	@Tags			integrations
//	@Success		200			{object}	dto.Response{data=[]integrationapp.WebhookResponse}
//	@Router			/integrations/webhooks [get]
func (h *IntegrationHandler) ListWebhooks(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	hooks, err := h.webhooks.ListWebhooks(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, hooks)
}

// UpsertWebhook godoc
// @ID           upsertWebhook
//
//	@Summary		Create or update the webhook of a platform
//	@Tags			integrations
//	@Param			request		body		integrationapp.UpsertWebhookRequest	true	"Webhook"
//	@Success		200			{object}	dto.Response{data=integrationapp.WebhookResponse}
//	@Router			/integrations/webhooks [put]
func (h *IntegrationHandler) UpsertWebhook(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req integrationapp.UpsertWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	hook, err := h.webhooks.UpsertWebhookConfig(c.Request.Context(), tenantID, req, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, hook)
}

// RecordWebhookOutcome godoc
// @ID           recordWebhookOutcome
//
//	@Summary		Count a webhook delivery attempt
//	@Tags			integrations
//	@Param			id			path		string							true	"Webhook ID"
//	@Param			request		body		integrationapp.OutcomeRequest	true	"Outcome"
//	@Success		200			{object}	dto.Response{data=integrationapp.WebhookResponse}
//	@Router			/integrations/webhooks/{id}/outcome [post]
func (h *IntegrationHandler) RecordWebhookOutcome(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req integrationapp.OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	hook, err := h.webhooks.RecordWebhookOutcome(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, hook)
}

func (h *IntegrationHandler) tenantAndPlatform(c *gin.Context) (uuid.UUID, integration.Platform, bool) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return uuid.Nil, "", false
	}
	platform, ok := h.pathPlatform(c)
	if !ok {
		return uuid.Nil, "", false
	}
	return tenantID, platform, true
}
