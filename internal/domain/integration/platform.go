package integration

import (
	"fmt"
	"strings"

	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// Platform identifies one of the external SaaS platforms bridged by this service
type Platform string

const (
	PlatformCRM        Platform = "CRM"
	PlatformPayments   Platform = "PAYMENTS"
	PlatformAccounting Platform = "ACCOUNTING"
)

// AllPlatforms returns every supported platform
func AllPlatforms() []Platform {
	return []Platform{PlatformCRM, PlatformPayments, PlatformAccounting}
}

// IsValid returns true if the platform is supported
func (p Platform) IsValid() bool {
	switch p {
	case PlatformCRM, PlatformPayments, PlatformAccounting:
		return true
	default:
		return false
	}
}

// String returns the string representation of Platform
func (p Platform) String() string {
	return string(p)
}

// ParsePlatform parses a platform name case-insensitively
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", shared.NewValidationError(fmt.Sprintf("unsupported platform %q", s))
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Environment
// ---------------------------------------------------------------------------

// Environment is the platform environment a configuration points at
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// IsValid returns true if the environment is known
func (e Environment) IsValid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// IsProduction reports whether the environment handles live data
func (e Environment) IsProduction() bool {
	return e == EnvironmentProduction
}

// ---------------------------------------------------------------------------
// ConfigType
// ---------------------------------------------------------------------------

// ConfigType distinguishes the credential scheme of a configuration
type ConfigType string

const (
	ConfigTypeAPIKey ConfigType = "api_key"
	ConfigTypeOAuth  ConfigType = "oauth"
)

// IsValid returns true if the config type is known
func (c ConfigType) IsValid() bool {
	return c == ConfigTypeAPIKey || c == ConfigTypeOAuth
}

// ---------------------------------------------------------------------------
// SyncDirection
// ---------------------------------------------------------------------------

// SyncDirection controls which way data flows between this service and a platform
type SyncDirection string

const (
	SyncDirectionBidirectional SyncDirection = "BIDIRECTIONAL"
	SyncDirectionToPlatform    SyncDirection = "TO_PLATFORM"
	SyncDirectionFromPlatform  SyncDirection = "FROM_PLATFORM"
)

// IsValid returns true if the sync direction is known
func (d SyncDirection) IsValid() bool {
	switch d {
	case SyncDirectionBidirectional, SyncDirectionToPlatform, SyncDirectionFromPlatform:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// HealthStatus
// ---------------------------------------------------------------------------

// HealthStatus is the result of the last health probe
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
)

// IsValid returns true if the health status is known
func (h HealthStatus) IsValid() bool {
	switch h {
	case HealthStatusHealthy, HealthStatusDegraded, HealthStatusUnhealthy, HealthStatusUnknown:
		return true
	default:
		return false
	}
}
