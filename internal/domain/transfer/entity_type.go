package transfer

import (
	"fmt"
	"strings"

	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// EntityType
// ---------------------------------------------------------------------------

// EntityType identifies the kind of business record carried by a queue entry
type EntityType string

const (
	EntityTypeContact  EntityType = "CONTACT"
	EntityTypeCompany  EntityType = "COMPANY"
	EntityTypeInvoice  EntityType = "INVOICE"
	EntityTypeLineItem EntityType = "LINE_ITEM"
)

// AllEntityTypes returns every supported entity type
func AllEntityTypes() []EntityType {
	return []EntityType{EntityTypeContact, EntityTypeCompany, EntityTypeInvoice, EntityTypeLineItem}
}

// IsValid returns true if the entity type is supported
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeContact, EntityTypeCompany, EntityTypeInvoice, EntityTypeLineItem:
		return true
	default:
		return false
	}
}

// IsHighPriority reports whether changes of this type are financially
// significant on their own
func (t EntityType) IsHighPriority() bool {
	switch t {
	case EntityTypeInvoice, EntityTypeLineItem:
		return true
	case EntityTypeContact, EntityTypeCompany:
		return false
	default:
		return false
	}
}

// String returns the string representation of EntityType
func (t EntityType) String() string {
	return string(t)
}

// ParseEntityType parses an entity type, accepting the lower-case and
// camel-case spellings used by the change-detection engine
func ParseEntityType(s string) (EntityType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	switch normalized {
	case "LINEITEM", "LINE-ITEM":
		normalized = string(EntityTypeLineItem)
	}
	t := EntityType(normalized)
	if !t.IsValid() {
		return "", shared.NewValidationError(fmt.Sprintf("unsupported entity type %q", s))
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// ChangeType / ActionType
// ---------------------------------------------------------------------------

// ChangeType is the kind of change reported by the change-detection engine
type ChangeType string

const (
	ChangeTypeCreated ChangeType = "created"
	ChangeTypeUpdated ChangeType = "updated"
	ChangeTypeDeleted ChangeType = "deleted"
)

// ActionType is the operation the transfer worker will perform on the
// accounting platform
type ActionType string

const (
	ActionTypeCreate ActionType = "CREATE"
	ActionTypeUpdate ActionType = "UPDATE"
	ActionTypeDelete ActionType = "DELETE"
)

// IsValid returns true if the action type is known
func (a ActionType) IsValid() bool {
	switch a {
	case ActionTypeCreate, ActionTypeUpdate, ActionTypeDelete:
		return true
	default:
		return false
	}
}

// Action derives the transfer action from the change kind
func (c ChangeType) Action() (ActionType, error) {
	switch c {
	case ChangeTypeCreated:
		return ActionTypeCreate, nil
	case ChangeTypeUpdated:
		return ActionTypeUpdate, nil
	case ChangeTypeDeleted:
		return ActionTypeDelete, nil
	default:
		return "", shared.NewValidationError(fmt.Sprintf("unsupported change type %q", c))
	}
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status is the approval workflow state of a queue entry
type Status string

const (
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
	StatusTransferred   Status = "TRANSFERRED"
	StatusFailed        Status = "FAILED"
)

// AllStatuses returns every workflow status
func AllStatuses() []Status {
	return []Status{StatusPendingReview, StatusApproved, StatusRejected, StatusTransferred, StatusFailed}
}

// ActiveStatuses are the statuses covered by the dedup constraint
func ActiveStatuses() []Status {
	return []Status{StatusPendingReview, StatusApproved}
}

// IsValid returns true if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingReview, StatusApproved, StatusRejected, StatusTransferred, StatusFailed:
		return true
	default:
		return false
	}
}

// IsActive reports whether the entry still counts for deduplication
func (s Status) IsActive() bool {
	return s == StatusPendingReview || s == StatusApproved
}

// IsPurgeable reports whether cleanup may hard-delete entries in this status
func (s Status) IsPurgeable() bool {
	return s == StatusTransferred || s == StatusRejected
}

// ---------------------------------------------------------------------------
// CascadePriority
// ---------------------------------------------------------------------------

// CascadePriority is the urgency the change-detection engine assigns to a
// cascade-impacted entity
type CascadePriority string

const (
	CascadePriorityLow      CascadePriority = "low"
	CascadePriorityMedium   CascadePriority = "medium"
	CascadePriorityHigh     CascadePriority = "high"
	CascadePriorityCritical CascadePriority = "critical"
)

// IsHigh reports whether the priority is high or critical
func (p CascadePriority) IsHigh() bool {
	return p == CascadePriorityHigh || p == CascadePriorityCritical
}
