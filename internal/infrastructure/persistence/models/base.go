package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// AggregateModel holds the identity, timestamp and version columns every
// tenant-owned table carries
type AggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Version   int       `gorm:"not null;default:1"`
}

// FromDomainTenantAggregateRoot copies the root's columns
func (m *AggregateModel) FromDomainTenantAggregateRoot(t shared.TenantAggregateRoot) {
	m.ID = t.ID
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
	m.Version = t.Version
}

// PopulateTenantAggregateRoot fills a root from persisted columns
func (m *AggregateModel) PopulateTenantAggregateRoot(t *shared.TenantAggregateRoot, tenantID uuid.UUID) {
	t.BaseEntity = shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
	t.Version = m.Version
	t.TenantID = tenantID
}

// CircuitBreakerColumns are the breaker fields shared by integration and webhook configs
type CircuitBreakerColumns struct {
	CircuitBreakerStatus       string `gorm:"type:varchar(20);not null;default:'CLOSED'"`
	ConsecutiveFailures        int    `gorm:"not null;default:0"`
	CircuitBreakerThreshold    int    `gorm:"not null;default:5"`
	CircuitBreakerOpenedAt     *time.Time
	CircuitBreakerResetAfterMs int64 `gorm:"not null;default:60000"`
	SuccessCount               int64 `gorm:"not null;default:0"`
	FailureCount               int64 `gorm:"not null;default:0"`
	LastSuccessAt              *time.Time
	LastFailureAt              *time.Time
}

// ToDomain converts the columns to a CircuitBreaker value object
func (c CircuitBreakerColumns) ToDomain() integration.CircuitBreaker {
	return integration.CircuitBreaker{
		Status:              integration.BreakerStatus(c.CircuitBreakerStatus),
		ConsecutiveFailures: c.ConsecutiveFailures,
		Threshold:           c.CircuitBreakerThreshold,
		OpenedAt:            c.CircuitBreakerOpenedAt,
		ResetAfter:          time.Duration(c.CircuitBreakerResetAfterMs) * time.Millisecond,
		SuccessCount:        c.SuccessCount,
		FailureCount:        c.FailureCount,
		LastSuccessAt:       c.LastSuccessAt,
		LastFailureAt:       c.LastFailureAt,
	}
}

// CircuitBreakerColumnsFromDomain converts a CircuitBreaker to its columns
func CircuitBreakerColumnsFromDomain(b integration.CircuitBreaker) CircuitBreakerColumns {
	status := b.Status
	if status == "" {
		status = integration.BreakerClosed
	}
	return CircuitBreakerColumns{
		CircuitBreakerStatus:       string(status),
		ConsecutiveFailures:        b.ConsecutiveFailures,
		CircuitBreakerThreshold:    b.Threshold,
		CircuitBreakerOpenedAt:     b.OpenedAt,
		CircuitBreakerResetAfterMs: b.ResetAfter.Milliseconds(),
		SuccessCount:               b.SuccessCount,
		FailureCount:               b.FailureCount,
		LastSuccessAt:              b.LastSuccessAt,
		LastFailureAt:              b.LastFailureAt,
	}
}

// Updates returns the column map used by version-guarded updates
func (c CircuitBreakerColumns) Updates() map[string]any {
	return map[string]any{
		"circuit_breaker_status":         c.CircuitBreakerStatus,
		"consecutive_failures":           c.ConsecutiveFailures,
		"circuit_breaker_threshold":      c.CircuitBreakerThreshold,
		"circuit_breaker_opened_at":      c.CircuitBreakerOpenedAt,
		"circuit_breaker_reset_after_ms": c.CircuitBreakerResetAfterMs,
		"success_count":                  c.SuccessCount,
		"failure_count":                  c.FailureCount,
		"last_success_at":                c.LastSuccessAt,
		"last_failure_at":                c.LastFailureAt,
	}
}
