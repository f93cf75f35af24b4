package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// AggregateTypeIntegrationConfig is the aggregate type used on domain events and audit entries
const AggregateTypeIntegrationConfig = "integration_config"

// EncryptedValue is a secret as stored: authenticated ciphertext plus the IV
// it was sealed with
type EncryptedValue struct {
	Ciphertext string
	IV         string
}

// IsSet reports whether a secret is stored
func (v EncryptedValue) IsSet() bool {
	return v.Ciphertext != "" && v.IV != ""
}

// SecretField names one of the credential fields of a configuration
type SecretField string

const (
	SecretAPIKey       SecretField = "api_key"
	SecretAPISecret    SecretField = "api_secret"
	SecretAccessToken  SecretField = "access_token"
	SecretRefreshToken SecretField = "refresh_token"
)

// AllSecretFields returns the credential fields in a stable order
func AllSecretFields() []SecretField {
	return []SecretField{SecretAPIKey, SecretAPISecret, SecretAccessToken, SecretRefreshToken}
}

// Credentials are decrypted secrets. They are never persisted or logged.
type Credentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	RefreshToken string
}

// Get returns the plaintext of one field
func (c Credentials) Get(f SecretField) string {
	switch f {
	case SecretAPIKey:
		return c.APIKey
	case SecretAPISecret:
		return c.APISecret
	case SecretAccessToken:
		return c.AccessToken
	case SecretRefreshToken:
		return c.RefreshToken
	default:
		return ""
	}
}

// Set assigns the plaintext of one field
func (c *Credentials) Set(f SecretField, v string) {
	switch f {
	case SecretAPIKey:
		c.APIKey = v
	case SecretAPISecret:
		c.APISecret = v
	case SecretAccessToken:
		c.AccessToken = v
	case SecretRefreshToken:
		c.RefreshToken = v
	}
}

// ConfigKey identifies the row an upsert targets
type ConfigKey struct {
	TenantID    uuid.UUID
	Platform    Platform
	ConfigType  ConfigType
	Environment Environment
}

// Validate checks that every key component is set and known
func (k ConfigKey) Validate() error {
	if k.TenantID == uuid.Nil {
		return shared.NewValidationError("tenant ID is required")
	}
	if !k.Platform.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("unsupported platform %q", k.Platform))
	}
	if !k.ConfigType.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("unsupported config type %q", k.ConfigType))
	}
	if !k.Environment.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("unsupported environment %q", k.Environment))
	}
	return nil
}

// IntegrationConfig holds the connection settings for one tenant on one platform
type IntegrationConfig struct {
	shared.TenantAggregateRoot
	Platform    Platform
	ConfigType  ConfigType
	Environment Environment

	BaseURL           string
	ExternalAccountID string
	SyncDirection     SyncDirection
	Settings          map[string]any

	// Secret fields, stored only in encrypted form
	APIKey       EncryptedValue
	APISecret    EncryptedValue
	AccessToken  EncryptedValue
	RefreshToken EncryptedValue

	IsPrimary bool
	IsActive  bool
	DeletedAt *time.Time

	HealthStatus      HealthStatus
	LastHealthCheckAt *time.Time
	HealthMessage     string

	Breaker CircuitBreaker

	RateLimitPerMinute int
	RateLimitRemaining *int
	RateLimitResetAt   *time.Time

	LastModifiedBy string
}

// NewIntegrationConfig creates an active configuration with a closed breaker
func NewIntegrationConfig(key ConfigKey, breaker CircuitBreaker) (*IntegrationConfig, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &IntegrationConfig{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(key.TenantID),
		Platform:            key.Platform,
		ConfigType:          key.ConfigType,
		Environment:         key.Environment,
		SyncDirection:       SyncDirectionToPlatform,
		Settings:            map[string]any{},
		IsActive:            true,
		HealthStatus:        HealthStatusUnknown,
		Breaker:             breaker,
	}, nil
}

// Key returns the identifying key of the configuration
func (c *IntegrationConfig) Key() ConfigKey {
	return ConfigKey{
		TenantID:    c.TenantID,
		Platform:    c.Platform,
		ConfigType:  c.ConfigType,
		Environment: c.Environment,
	}
}

// Secret returns the stored value of a secret field
func (c *IntegrationConfig) Secret(f SecretField) EncryptedValue {
	switch f {
	case SecretAPIKey:
		return c.APIKey
	case SecretAPISecret:
		return c.APISecret
	case SecretAccessToken:
		return c.AccessToken
	case SecretRefreshToken:
		return c.RefreshToken
	default:
		return EncryptedValue{}
	}
}

// SetSecret stores an encrypted secret field
func (c *IntegrationConfig) SetSecret(f SecretField, v EncryptedValue) {
	switch f {
	case SecretAPIKey:
		c.APIKey = v
	case SecretAPISecret:
		c.APISecret = v
	case SecretAccessToken:
		c.AccessToken = v
	case SecretRefreshToken:
		c.RefreshToken = v
	}
	c.Touch()
}

// StoredSecretFields lists the secret fields currently holding a value
func (c *IntegrationConfig) StoredSecretFields() []SecretField {
	var fields []SecretField
	for _, f := range AllSecretFields() {
		if c.Secret(f).IsSet() {
			fields = append(fields, f)
		}
	}
	return fields
}

// ClearSecrets wipes every stored credential and returns the fields that held one
func (c *IntegrationConfig) ClearSecrets() []SecretField {
	cleared := c.StoredSecretFields()
	for _, f := range AllSecretFields() {
		c.SetSecret(f, EncryptedValue{})
	}
	return cleared
}

// SetSyncDirection changes the sync direction
func (c *IntegrationConfig) SetSyncDirection(d SyncDirection) error {
	if !d.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("unsupported sync direction %q", d))
	}
	c.SyncDirection = d
	c.Touch()
	return nil
}

// SetBaseURL sets the platform API base URL
func (c *IntegrationConfig) SetBaseURL(u string) {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(u), "/")
	c.Touch()
}

// RecordHealth stores the result of a health probe
func (c *IntegrationConfig) RecordHealth(status HealthStatus, message string, at time.Time) {
	if !status.IsValid() {
		status = HealthStatusUnknown
	}
	c.HealthStatus = status
	c.HealthMessage = message
	c.LastHealthCheckAt = &at
	c.UpdatedAt = at
}

// RecordOutcome feeds a platform call result into the breaker and raises a
// transition event when the breaker status changes
func (c *IntegrationConfig) RecordOutcome(success bool, now time.Time) bool {
	from := c.Breaker.Status
	var changed bool
	if success {
		changed = c.Breaker.RecordSuccess(now)
	} else {
		changed = c.Breaker.RecordFailure(now)
	}
	c.UpdatedAt = now
	if changed {
		c.AddDomainEvent(NewBreakerTransitionedEvent(c.ID, c.TenantID, c.Platform, AggregateTypeIntegrationConfig, from, c.Breaker.Status))
	}
	return changed
}

// EvaluateBreaker applies the lazy Open->HalfOpen timeout
func (c *IntegrationConfig) EvaluateBreaker(now time.Time) bool {
	from := c.Breaker.Status
	if !c.Breaker.Evaluate(now) {
		return false
	}
	c.UpdatedAt = now
	c.AddDomainEvent(NewBreakerTransitionedEvent(c.ID, c.TenantID, c.Platform, AggregateTypeIntegrationConfig, from, c.Breaker.Status))
	return true
}

// UpdateRateLimit records the platform's advertised rate-limit window
func (c *IntegrationConfig) UpdateRateLimit(perMinute, remaining int, resetAt *time.Time) error {
	if perMinute < 0 || remaining < 0 {
		return shared.NewValidationError("rate limit values cannot be negative")
	}
	if perMinute > 0 {
		c.RateLimitPerMinute = perMinute
	}
	c.RateLimitRemaining = &remaining
	c.RateLimitResetAt = resetAt
	c.Touch()
	return nil
}

// Deactivate soft-deletes the configuration
func (c *IntegrationConfig) Deactivate(now time.Time) error {
	if !c.IsActive {
		return shared.NewInvalidStateError("integration config is already inactive")
	}
	c.IsActive = false
	c.IsPrimary = false
	c.DeletedAt = &now
	c.UpdatedAt = now
	return nil
}
