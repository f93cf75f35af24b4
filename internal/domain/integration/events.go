package integration

import (
	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// EventTypeBreakerTransitioned is raised whenever a breaker changes status
const EventTypeBreakerTransitioned = "CircuitBreakerTransitioned"

// BreakerTransitionedEvent reports a circuit breaker status change
type BreakerTransitionedEvent struct {
	shared.BaseDomainEvent
	Platform Platform      `json:"platform"`
	From     BreakerStatus `json:"from"`
	To       BreakerStatus `json:"to"`
}

// NewBreakerTransitionedEvent creates a BreakerTransitionedEvent
func NewBreakerTransitionedEvent(aggID, tenantID uuid.UUID, platform Platform, aggType string, from, to BreakerStatus) *BreakerTransitionedEvent {
	return &BreakerTransitionedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBreakerTransitioned, aggType, aggID, tenantID),
		Platform:        platform,
		From:            from,
		To:              to,
	}
}
