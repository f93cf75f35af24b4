package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Configuration DTOs
// ---------------------------------------------------------------------------

// ConfigResponse is the read model of an integration configuration. Secret
// values never leave the service through it; only the names of the stored
// fields are listed.
type ConfigResponse struct {
	ID                 uuid.UUID       `json:"id"`
	TenantID           uuid.UUID       `json:"tenant_id"`
	Platform           string          `json:"platform"`
	ConfigType         string          `json:"config_type"`
	Environment        string          `json:"environment"`
	BaseURL            string          `json:"base_url,omitempty"`
	ExternalAccountID  string          `json:"external_account_id,omitempty"`
	SyncDirection      string          `json:"sync_direction"`
	Settings           map[string]any  `json:"settings"`
	StoredSecrets      []string        `json:"stored_secrets"`
	IsPrimary          bool            `json:"is_primary"`
	IsActive           bool            `json:"is_active"`
	HealthStatus       string          `json:"health_status"`
	HealthMessage      string          `json:"health_message,omitempty"`
	LastHealthCheckAt  *time.Time      `json:"last_health_check_at,omitempty"`
	Breaker            BreakerResponse `json:"circuit_breaker"`
	RateLimitPerMinute int             `json:"rate_limit_per_minute,omitempty"`
	RateLimitRemaining *int            `json:"rate_limit_remaining,omitempty"`
	RateLimitResetAt   *time.Time      `json:"rate_limit_reset_at,omitempty"`
	LastModifiedBy     string          `json:"last_modified_by,omitempty"`
	Version            int             `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// BreakerResponse is the read model of a circuit breaker
type BreakerResponse struct {
	Status              string     `json:"status"`
	AllowsRequest       bool       `json:"allows_request"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Threshold           int        `json:"threshold"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
	RetryAt             *time.Time `json:"retry_at,omitempty"`
	ResetAfterMs        int64      `json:"reset_after_ms"`
	SuccessCount        int64      `json:"success_count"`
	FailureCount        int64      `json:"failure_count"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
}

// BreakerStateResponse is returned by GetBreakerState
type BreakerStateResponse struct {
	ConfigID uuid.UUID `json:"config_id"`
	Platform string    `json:"platform"`
	BreakerResponse
}

// ActiveConfig is a configuration together with its decrypted credentials.
// Credentials are excluded from JSON.
type ActiveConfig struct {
	Config      ConfigResponse          `json:"config"`
	Credentials integration.Credentials `json:"-"`
}

// UpsertConfigRequest creates or updates the configuration identified by
// (platform, config type, environment). Nil secret pointers leave the
// stored value untouched; an empty string clears it.
type UpsertConfigRequest struct {
	Platform          string         `json:"platform" binding:"required,platform"`
	ConfigType        string         `json:"config_type" binding:"required,oneof=api_key oauth"`
	Environment       string         `json:"environment" binding:"required,oneof=sandbox production"`
	BaseURL           *string        `json:"base_url" binding:"omitempty,max=500"`
	ExternalAccountID *string        `json:"external_account_id" binding:"omitempty,max=255"`
	SyncDirection     string         `json:"sync_direction" binding:"omitempty,oneof=BIDIRECTIONAL TO_PLATFORM FROM_PLATFORM"`
	Settings          map[string]any `json:"settings"`
	IsPrimary         *bool          `json:"is_primary"`

	APIKey       *string `json:"api_key"`
	APISecret    *string `json:"api_secret"`
	AccessToken  *string `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
}

// secrets returns the provided secret fields keyed by field
func (r UpsertConfigRequest) secrets() map[integration.SecretField]*string {
	out := make(map[integration.SecretField]*string, 4)
	for f, v := range map[integration.SecretField]*string{
		integration.SecretAPIKey:       r.APIKey,
		integration.SecretAPISecret:    r.APISecret,
		integration.SecretAccessToken:  r.AccessToken,
		integration.SecretRefreshToken: r.RefreshToken,
	} {
		if v != nil {
			out[f] = v
		}
	}
	return out
}

// UpsertConfigResult reports the saved configuration and the audit risk
type UpsertConfigResult struct {
	Config    ConfigResponse `json:"config"`
	Created   bool           `json:"created"`
	RiskLevel string         `json:"risk_level"`
}

// ValidateResult is the outcome of a health probe
type ValidateResult struct {
	ConfigID  uuid.UUID `json:"config_id"`
	Platform  string    `json:"platform"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// RateLimitRequest records the rate-limit window advertised by a platform
type RateLimitRequest struct {
	PerMinute int        `json:"per_minute" binding:"min=0"`
	Remaining int        `json:"remaining" binding:"min=0"`
	ResetAt   *time.Time `json:"reset_at"`
}

// OutcomeRequest reports the result of one platform call
type OutcomeRequest struct {
	Success bool   `json:"success"`
	Error   string `json:"error" binding:"max=2000"`
}

// ---------------------------------------------------------------------------
// Webhook DTOs
// ---------------------------------------------------------------------------

// WebhookResponse is the read model of a webhook configuration
type WebhookResponse struct {
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenant_id"`
	Platform         string          `json:"platform"`
	URL              string          `json:"url"`
	Events           []string        `json:"events"`
	IsActive         bool            `json:"is_active"`
	HasSigningSecret bool            `json:"has_signing_secret"`
	Breaker          BreakerResponse `json:"circuit_breaker"`
	TriggerCount     int64           `json:"trigger_count"`
	LastTriggeredAt  *time.Time      `json:"last_triggered_at,omitempty"`
	LastError        string          `json:"last_error,omitempty"`
	LastModifiedBy   string          `json:"last_modified_by,omitempty"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// UpsertWebhookRequest creates or updates the webhook of a platform
type UpsertWebhookRequest struct {
	Platform      string   `json:"platform" binding:"required,platform"`
	URL           string   `json:"url" binding:"required,url,max=1000"`
	Events        []string `json:"events" binding:"max=100,dive,max=100"`
	SigningSecret *string  `json:"signing_secret"`
	IsActive      *bool    `json:"is_active"`
}

// ---------------------------------------------------------------------------
// Mappers
// ---------------------------------------------------------------------------

// ToBreakerResponse maps a breaker value object
func ToBreakerResponse(b integration.CircuitBreaker) BreakerResponse {
	return BreakerResponse{
		Status:              string(b.Status),
		AllowsRequest:       b.AllowsRequest(),
		ConsecutiveFailures: b.ConsecutiveFailures,
		Threshold:           b.Threshold,
		OpenedAt:            b.OpenedAt,
		RetryAt:             b.RetryAt(),
		ResetAfterMs:        b.ResetAfter.Milliseconds(),
		SuccessCount:        b.SuccessCount,
		FailureCount:        b.FailureCount,
		LastSuccessAt:       b.LastSuccessAt,
		LastFailureAt:       b.LastFailureAt,
	}
}

// ToConfigResponse maps a configuration without its secrets
func ToConfigResponse(c *integration.IntegrationConfig) ConfigResponse {
	stored := make([]string, 0, 4)
	for _, f := range c.StoredSecretFields() {
		stored = append(stored, string(f))
	}
	settings := c.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	return ConfigResponse{
		ID:                 c.ID,
		TenantID:           c.TenantID,
		Platform:           string(c.Platform),
		ConfigType:         string(c.ConfigType),
		Environment:        string(c.Environment),
		BaseURL:            c.BaseURL,
		ExternalAccountID:  c.ExternalAccountID,
		SyncDirection:      string(c.SyncDirection),
		Settings:           settings,
		StoredSecrets:      stored,
		IsPrimary:          c.IsPrimary,
		IsActive:           c.IsActive,
		HealthStatus:       string(c.HealthStatus),
		HealthMessage:      c.HealthMessage,
		LastHealthCheckAt:  c.LastHealthCheckAt,
		Breaker:            ToBreakerResponse(c.Breaker),
		RateLimitPerMinute: c.RateLimitPerMinute,
		RateLimitRemaining: c.RateLimitRemaining,
		RateLimitResetAt:   c.RateLimitResetAt,
		LastModifiedBy:     c.LastModifiedBy,
		Version:            c.Version,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// ToWebhookResponse maps a webhook configuration without its signing secret
func ToWebhookResponse(w *integration.WebhookConfig) WebhookResponse {
	events := w.Events
	if events == nil {
		events = []string{}
	}
	return WebhookResponse{
		ID:               w.ID,
		TenantID:         w.TenantID,
		Platform:         string(w.Platform),
		URL:              w.URL,
		Events:           events,
		IsActive:         w.IsActive,
		HasSigningSecret: w.SigningSecret.IsSet(),
		Breaker:          ToBreakerResponse(w.Breaker),
		TriggerCount:     w.TriggerCount,
		LastTriggeredAt:  w.LastTriggeredAt,
		LastError:        w.LastError,
		LastModifiedBy:   w.LastModifiedBy,
		Version:          w.Version,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}
