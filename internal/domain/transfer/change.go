package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// EntityChange is a single delta reported by the change-detection engine
type EntityChange struct {
	EntityType   EntityType
	EntityID     string
	ChangeType   ChangeType
	PreviousData Snapshot
}

// ImpactedEntity is an entity that needs re-sync because a related entity changed
type ImpactedEntity struct {
	EntityType   EntityType
	EntityID     string
	RequiresSync bool
	Priority     CascadePriority
}

// CascadeImpact groups the entities affected by one source change
type CascadeImpact struct {
	SourceChange     EntityChange
	ImpactedEntities []ImpactedEntity
}

// DetectionResult is the outcome of one change-detection sweep
type DetectionResult struct {
	DetectedChanges []EntityChange
	CascadeImpacts  []CascadeImpact
}

// Trigger reasons recorded on queue entries
const (
	TriggerDirectChange  = "direct_change"
	cascadeTriggerPrefix = "cascade_from_"
)

// CascadeTrigger returns the provenance tag for an entry enqueued because
// an entity of sourceType changed
func CascadeTrigger(sourceType EntityType) string {
	return cascadeTriggerPrefix + strings.ToLower(string(sourceType))
}

// IsCascadeTrigger reports whether reason was produced by CascadeTrigger
func IsCascadeTrigger(reason string) bool {
	return strings.HasPrefix(reason, cascadeTriggerPrefix)
}

// ChangeDetector discovers entity deltas and their cascade impacts for a tenant
type ChangeDetector interface {
	DetectChangesAndCascadeImpacts(ctx context.Context, tenantID uuid.UUID) (*DetectionResult, error)
}

// EntityDataProvider materializes full entity records. Each getter returns
// nil, nil when the entity does not exist.
type EntityDataProvider interface {
	GetContact(ctx context.Context, tenantID uuid.UUID, id string) (*ContactSnapshot, error)
	GetCompany(ctx context.Context, tenantID uuid.UUID, id string) (*CompanySnapshot, error)
	GetInvoice(ctx context.Context, tenantID uuid.UUID, id string) (*InvoiceSnapshot, error)
	GetLineItem(ctx context.Context, tenantID uuid.UUID, id string) (*LineItemSnapshot, error)
}

// FetchSnapshot loads the snapshot for an entity through the matching
// provider getter. It returns nil, nil when the entity is absent.
func FetchSnapshot(ctx context.Context, p EntityDataProvider, tenantID uuid.UUID, t EntityType, id string) (Snapshot, error) {
	switch t {
	case EntityTypeContact:
		s, err := p.GetContact(ctx, tenantID, id)
		if err != nil || s == nil {
			return nil, err
		}
		return *s, nil
	case EntityTypeCompany:
		s, err := p.GetCompany(ctx, tenantID, id)
		if err != nil || s == nil {
			return nil, err
		}
		return *s, nil
	case EntityTypeInvoice:
		s, err := p.GetInvoice(ctx, tenantID, id)
		if err != nil || s == nil {
			return nil, err
		}
		return *s, nil
	case EntityTypeLineItem:
		s, err := p.GetLineItem(ctx, tenantID, id)
		if err != nil || s == nil {
			return nil, err
		}
		return *s, nil
	default:
		return nil, fmt.Errorf("fetch snapshot: unsupported entity type %q", t)
	}
}
