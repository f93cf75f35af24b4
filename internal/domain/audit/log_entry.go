// Package audit contains the append-only audit trail of configuration and
// transfer queue changes.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// Action is the kind of change being audited
type Action string

const (
	ActionCreate   Action = "CREATE"
	ActionUpdate   Action = "UPDATE"
	ActionDelete   Action = "DELETE"
	ActionValidate Action = "VALIDATE"
	ActionRevoke   Action = "REVOKE"
)

// IsValid returns true if the action is known
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionValidate, ActionRevoke:
		return true
	default:
		return false
	}
}

// RiskLevel classifies how dangerous an audited change is
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank orders risk levels from 0 (LOW) to 3 (CRITICAL); unknown levels rank -1
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// IsValid returns true if the risk level is known
func (r RiskLevel) IsValid() bool {
	return r.Rank() >= 0
}

// AtLeast reports whether r is as severe as other
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank()
}

// Max returns the more severe of two levels
func Max(a, b RiskLevel) RiskLevel {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// LogEntry is one immutable audit record. Only ReviewedAt/ReviewedBy may
// be set after creation.
type LogEntry struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	EntityType     string
	EntityID       uuid.UUID
	Action         Action
	PerformedBy    string
	RiskLevel      RiskLevel
	Platform       string
	Metadata       map[string]any
	RequiresReview bool
	ReviewedAt     *time.Time
	ReviewedBy     string
	CreatedAt      time.Time
}

// NewLogEntry creates an audit record. Entries at HIGH risk or above
// require review.
func NewLogEntry(
	tenantID uuid.UUID,
	entityType string,
	entityID uuid.UUID,
	action Action,
	performedBy string,
	risk RiskLevel,
	platform string,
	metadata map[string]any,
) (*LogEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant ID is required")
	}
	if strings.TrimSpace(entityType) == "" {
		return nil, shared.NewValidationError("audited entity type is required")
	}
	if !action.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("unsupported audit action %q", action))
	}
	if !risk.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("unsupported risk level %q", risk))
	}
	if strings.TrimSpace(performedBy) == "" {
		performedBy = "system"
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &LogEntry{
		ID:             uuid.New(),
		TenantID:       tenantID,
		EntityType:     entityType,
		EntityID:       entityID,
		Action:         action,
		PerformedBy:    performedBy,
		RiskLevel:      risk,
		Platform:       platform,
		Metadata:       metadata,
		RequiresReview: risk.AtLeast(RiskHigh),
		CreatedAt:      time.Now(),
	}, nil
}

// MarkReviewed signs off the entry
func (e *LogEntry) MarkReviewed(reviewer string, at time.Time) error {
	if strings.TrimSpace(reviewer) == "" {
		return shared.NewValidationError("reviewer is required")
	}
	if e.ReviewedAt != nil {
		return shared.NewInvalidStateError("audit entry has already been reviewed")
	}
	e.ReviewedAt = &at
	e.ReviewedBy = reviewer
	return nil
}
