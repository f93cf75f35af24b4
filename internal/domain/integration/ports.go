package integration

import (
	"context"

	"github.com/google/uuid"
)

// SecretCipher seals and opens secret values. Every Encrypt call draws a
// fresh IV. Decrypt fails when the authentication tag does not verify.
type SecretCipher interface {
	Encrypt(plaintext string) (EncryptedValue, error)
	Decrypt(v EncryptedValue) (string, error)
}

// ProbeResult is what a platform health probe reports
type ProbeResult struct {
	Status  HealthStatus
	Message string
}

// HealthProbe checks connectivity and credentials against one platform.
// Implementations must honour ctx cancellation.
type HealthProbe interface {
	Probe(ctx context.Context, cfg *IntegrationConfig, creds Credentials) (ProbeResult, error)
}

// ConfigRepository persists integration configurations
type ConfigRepository interface {
	// FindByKey returns the active configuration for key, or nil when none exists
	FindByKey(ctx context.Context, key ConfigKey) (*IntegrationConfig, error)
	// FindActive returns the active primary configuration of a platform, or nil
	FindActive(ctx context.Context, tenantID uuid.UUID, platform Platform) (*IntegrationConfig, error)
	// FindByID returns shared.ErrNotFound when absent
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*IntegrationConfig, error)
	Create(ctx context.Context, cfg *IntegrationConfig) error
	// Update is guarded by the config version; a stale version yields
	// shared.ErrConcurrencyConflict
	Update(ctx context.Context, cfg *IntegrationConfig) error
	// ClearPrimary demotes every other active primary configuration of the platform
	ClearPrimary(ctx context.Context, tenantID uuid.UUID, platform Platform, exceptID uuid.UUID) error
	// ListActiveTenants returns tenants holding an active configuration for platform
	ListActiveTenants(ctx context.Context, platform Platform) ([]uuid.UUID, error)
}

// WebhookRepository persists webhook configurations
type WebhookRepository interface {
	// FindByID returns shared.ErrNotFound when absent
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*WebhookConfig, error)
	// FindByPlatform returns the webhook of a platform, or nil
	FindByPlatform(ctx context.Context, tenantID uuid.UUID, platform Platform) (*WebhookConfig, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*WebhookConfig, error)
	Create(ctx context.Context, w *WebhookConfig) error
	Update(ctx context.Context, w *WebhookConfig) error
}
