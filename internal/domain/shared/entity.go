package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity holds identity and timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Touch bumps UpdatedAt to now
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// TenantAggregateRoot is the root of every tenant-owned aggregate. Version
// backs optimistic locking: repositories update only the row whose stored
// version matches and then increment it.
type TenantAggregateRoot struct {
	BaseEntity
	TenantID uuid.UUID
	Version  int

	events []DomainEvent
}

// NewTenantAggregateRoot creates a root with a fresh id at version 1
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	now := time.Now().UTC()
	return TenantAggregateRoot{
		BaseEntity: BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TenantID:   tenantID,
		Version:    1,
	}
}

// AddDomainEvent records an event to publish after commit
func (a *TenantAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// GetDomainEvents returns the recorded events
func (a *TenantAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.events
}

// ClearDomainEvents drops the recorded events
func (a *TenantAggregateRoot) ClearDomainEvents() {
	a.events = nil
}
