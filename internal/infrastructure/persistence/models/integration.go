package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// logger for model conversion errors (silent failures are logged for debugging)
var modelLogger = zap.L().Named("integration.models")

// IntegrationConfigModel is the persistence model for the IntegrationConfig aggregate root.
// Secrets are stored as ciphertext plus IV columns; plaintext never reaches this layer.
type IntegrationConfigModel struct {
	AggregateModel
	TenantID              uuid.UUID `gorm:"type:uuid;not null;index:idx_integration_tenant_platform,priority:1;uniqueIndex:idx_integration_primary,priority:1,where:is_active = true AND is_primary = true;uniqueIndex:idx_integration_active_key,priority:1,where:is_active = true"`
	Platform              string    `gorm:"type:varchar(20);not null;index:idx_integration_tenant_platform,priority:2;uniqueIndex:idx_integration_primary,priority:2;uniqueIndex:idx_integration_active_key,priority:2"`
	ConfigType            string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_integration_active_key,priority:3"`
	Environment           string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_integration_active_key,priority:4"`
	BaseURL               string    `gorm:"type:varchar(500)"`
	ExternalAccountID     string    `gorm:"type:varchar(255)"`
	SyncDirection         string    `gorm:"type:varchar(20);not null;default:'TO_PLATFORM'"`
	Settings              datatypes.JSON
	APIKeyEncrypted       string `gorm:"type:text"`
	APIKeyIV              string `gorm:"column:api_key_iv;type:varchar(32)"`
	APISecretEncrypted    string `gorm:"type:text"`
	APISecretIV           string `gorm:"column:api_secret_iv;type:varchar(32)"`
	AccessTokenEncrypted  string `gorm:"type:text"`
	AccessTokenIV         string `gorm:"column:access_token_iv;type:varchar(32)"`
	RefreshTokenEncrypted string `gorm:"type:text"`
	RefreshTokenIV        string `gorm:"column:refresh_token_iv;type:varchar(32)"`
	IsPrimary             bool   `gorm:"not null;default:false"`
	IsActive              bool   `gorm:"not null;default:true"`
	DeletedAt             *time.Time
	HealthStatus          string `gorm:"type:varchar(20);not null;default:'UNKNOWN'"`
	LastHealthCheckAt     *time.Time
	HealthMessage         string `gorm:"type:text"`
	CircuitBreakerColumns `gorm:"embedded"`
	RateLimitPerMinute    int `gorm:"not null;default:0"`
	RateLimitRemaining    *int
	RateLimitResetAt      *time.Time
	LastModifiedBy        string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (IntegrationConfigModel) TableName() string {
	return "integration_configs"
}

// ToDomain converts the persistence model to a domain IntegrationConfig.
func (m *IntegrationConfigModel) ToDomain() *integration.IntegrationConfig {
	cfg := &integration.IntegrationConfig{
		Platform:           integration.Platform(m.Platform),
		ConfigType:         integration.ConfigType(m.ConfigType),
		Environment:        integration.Environment(m.Environment),
		BaseURL:            m.BaseURL,
		ExternalAccountID:  m.ExternalAccountID,
		SyncDirection:      integration.SyncDirection(m.SyncDirection),
		Settings:           map[string]any{},
		APIKey:             integration.EncryptedValue{Ciphertext: m.APIKeyEncrypted, IV: m.APIKeyIV},
		APISecret:          integration.EncryptedValue{Ciphertext: m.APISecretEncrypted, IV: m.APISecretIV},
		AccessToken:        integration.EncryptedValue{Ciphertext: m.AccessTokenEncrypted, IV: m.AccessTokenIV},
		RefreshToken:       integration.EncryptedValue{Ciphertext: m.RefreshTokenEncrypted, IV: m.RefreshTokenIV},
		IsPrimary:          m.IsPrimary,
		IsActive:           m.IsActive,
		DeletedAt:          m.DeletedAt,
		HealthStatus:       integration.HealthStatus(m.HealthStatus),
		LastHealthCheckAt:  m.LastHealthCheckAt,
		HealthMessage:      m.HealthMessage,
		Breaker:            m.CircuitBreakerColumns.ToDomain(),
		RateLimitPerMinute: m.RateLimitPerMinute,
		RateLimitRemaining: m.RateLimitRemaining,
		RateLimitResetAt:   m.RateLimitResetAt,
		LastModifiedBy:     m.LastModifiedBy,
	}
	m.PopulateTenantAggregateRoot(&cfg.TenantAggregateRoot, m.TenantID)

	if len(m.Settings) > 0 {
		if err := json.Unmarshal(m.Settings, &cfg.Settings); err != nil {
			modelLogger.Warn("failed to parse integration settings JSON",
				zap.String("config_id", m.ID.String()),
				zap.Error(err))
		}
	}
	return cfg
}

// FromDomain populates the persistence model from a domain IntegrationConfig.
func (m *IntegrationConfigModel) FromDomain(c *integration.IntegrationConfig) {
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	m.TenantID = c.TenantID
	m.Platform = string(c.Platform)
	m.ConfigType = string(c.ConfigType)
	m.Environment = string(c.Environment)
	m.BaseURL = c.BaseURL
	m.ExternalAccountID = c.ExternalAccountID
	m.SyncDirection = string(c.SyncDirection)
	m.Settings = datatypes.JSON("{}")
	if len(c.Settings) > 0 {
		if b, err := json.Marshal(c.Settings); err == nil {
			m.Settings = datatypes.JSON(b)
		}
	}
	m.APIKeyEncrypted, m.APIKeyIV = c.APIKey.Ciphertext, c.APIKey.IV
	m.APISecretEncrypted, m.APISecretIV = c.APISecret.Ciphertext, c.APISecret.IV
	m.AccessTokenEncrypted, m.AccessTokenIV = c.AccessToken.Ciphertext, c.AccessToken.IV
	m.RefreshTokenEncrypted, m.RefreshTokenIV = c.RefreshToken.Ciphertext, c.RefreshToken.IV
	m.IsPrimary = c.IsPrimary
	m.IsActive = c.IsActive
	m.DeletedAt = c.DeletedAt
	m.HealthStatus = string(c.HealthStatus)
	m.LastHealthCheckAt = c.LastHealthCheckAt
	m.HealthMessage = c.HealthMessage
	m.CircuitBreakerColumns = CircuitBreakerColumnsFromDomain(c.Breaker)
	m.RateLimitPerMinute = c.RateLimitPerMinute
	m.RateLimitRemaining = c.RateLimitRemaining
	m.RateLimitResetAt = c.RateLimitResetAt
	m.LastModifiedBy = c.LastModifiedBy
}

// MutableColumns returns the columns an update may change
func (m *IntegrationConfigModel) MutableColumns() map[string]any {
	cols := map[string]any{
		"base_url":                m.BaseURL,
		"external_account_id":     m.ExternalAccountID,
		"sync_direction":          m.SyncDirection,
		"settings":                m.Settings,
		"api_key_encrypted":       m.APIKeyEncrypted,
		"api_key_iv":              m.APIKeyIV,
		"api_secret_encrypted":    m.APISecretEncrypted,
		"api_secret_iv":           m.APISecretIV,
		"access_token_encrypted":  m.AccessTokenEncrypted,
		"access_token_iv":         m.AccessTokenIV,
		"refresh_token_encrypted": m.RefreshTokenEncrypted,
		"refresh_token_iv":        m.RefreshTokenIV,
		"is_primary":              m.IsPrimary,
		"is_active":               m.IsActive,
		"deleted_at":              m.DeletedAt,
		"health_status":           m.HealthStatus,
		"last_health_check_at":    m.LastHealthCheckAt,
		"health_message":          m.HealthMessage,
		"rate_limit_per_minute":   m.RateLimitPerMinute,
		"rate_limit_remaining":    m.RateLimitRemaining,
		"rate_limit_reset_at":     m.RateLimitResetAt,
		"last_modified_by":        m.LastModifiedBy,
		"updated_at":              m.UpdatedAt,
	}
	for k, v := range m.CircuitBreakerColumns.Updates() {
		cols[k] = v
	}
	return cols
}

// IntegrationConfigModelFromDomain creates a new persistence model from a domain IntegrationConfig.
func IntegrationConfigModelFromDomain(c *integration.IntegrationConfig) *IntegrationConfigModel {
	m := &IntegrationConfigModel{}
	m.FromDomain(c)
	return m
}

// WebhookConfigModel is the persistence model for the WebhookConfig aggregate root.
type WebhookConfigModel struct {
	AggregateModel
	TenantID               uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_webhook_tenant_platform,priority:1"`
	Platform               string                      `gorm:"type:varchar(20);not null;uniqueIndex:idx_webhook_tenant_platform,priority:2"`
	URL                    string                      `gorm:"type:varchar(500);not null"`
	SigningSecretEncrypted string                      `gorm:"type:text"`
	SigningSecretIV        string                      `gorm:"column:signing_secret_iv;type:varchar(32)"`
	Events                 datatypes.JSONSlice[string] `gorm:"not null"`
	IsActive               bool                        `gorm:"not null;default:true"`
	CircuitBreakerColumns  `gorm:"embedded"`
	TriggerCount           int64 `gorm:"not null;default:0"`
	LastTriggeredAt        *time.Time
	LastError              string `gorm:"type:text"`
	LastModifiedBy         string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (WebhookConfigModel) TableName() string {
	return "webhook_configs"
}

// ToDomain converts the persistence model to a domain WebhookConfig.
func (m *WebhookConfigModel) ToDomain() *integration.WebhookConfig {
	events := make([]string, 0, len(m.Events))
	events = append(events, m.Events...)
	w := &integration.WebhookConfig{
		Platform:        integration.Platform(m.Platform),
		URL:             m.URL,
		SigningSecret:   integration.EncryptedValue{Ciphertext: m.SigningSecretEncrypted, IV: m.SigningSecretIV},
		Events:          events,
		IsActive:        m.IsActive,
		Breaker:         m.CircuitBreakerColumns.ToDomain(),
		TriggerCount:    m.TriggerCount,
		LastTriggeredAt: m.LastTriggeredAt,
		LastError:       m.LastError,
		LastModifiedBy:  m.LastModifiedBy,
	}
	m.PopulateTenantAggregateRoot(&w.TenantAggregateRoot, m.TenantID)
	return w
}

// FromDomain populates the persistence model from a domain WebhookConfig.
func (m *WebhookConfigModel) FromDomain(w *integration.WebhookConfig) {
	m.FromDomainTenantAggregateRoot(w.TenantAggregateRoot)
	m.TenantID = w.TenantID
	m.Platform = string(w.Platform)
	m.URL = w.URL
	m.SigningSecretEncrypted = w.SigningSecret.Ciphertext
	m.SigningSecretIV = w.SigningSecret.IV
	m.Events = datatypes.JSONSlice[string](append([]string{}, w.Events...))
	m.IsActive = w.IsActive
	m.CircuitBreakerColumns = CircuitBreakerColumnsFromDomain(w.Breaker)
	m.TriggerCount = w.TriggerCount
	m.LastTriggeredAt = w.LastTriggeredAt
	m.LastError = w.LastError
	m.LastModifiedBy = w.LastModifiedBy
}

// MutableColumns returns the columns an update may change
func (m *WebhookConfigModel) MutableColumns() map[string]any {
	cols := map[string]any{
		"url":                      m.URL,
		"signing_secret_encrypted": m.SigningSecretEncrypted,
		"signing_secret_iv":        m.SigningSecretIV,
		"events":                   m.Events,
		"is_active":                m.IsActive,
		"trigger_count":            m.TriggerCount,
		"last_triggered_at":        m.LastTriggeredAt,
		"last_error":               m.LastError,
		"last_modified_by":         m.LastModifiedBy,
		"updated_at":               m.UpdatedAt,
	}
	for k, v := range m.CircuitBreakerColumns.Updates() {
		cols[k] = v
	}
	return cols
}

// WebhookConfigModelFromDomain creates a new persistence model from a domain WebhookConfig.
func WebhookConfigModelFromDomain(w *integration.WebhookConfig) *WebhookConfigModel {
	m := &WebhookConfigModel{}
	m.FromDomain(w)
	return m
}
