package collaborator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
	"go.uber.org/zap"
)

type changeWire struct {
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	ChangeType   string          `json:"change_type"`
	PreviousData json.RawMessage `json:"previous_data,omitempty"`
}

type impactedWire struct {
	EntityType   string `json:"entity_type"`
	EntityID     string `json:"entity_id"`
	RequiresSync bool   `json:"requires_sync"`
	Priority     string `json:"priority"`
}

type cascadeWire struct {
	SourceChange     changeWire     `json:"source_change"`
	ImpactedEntities []impactedWire `json:"impacted_entities"`
}

type detectionWire struct {
	DetectedChanges []changeWire  `json:"detected_changes"`
	CascadeImpacts  []cascadeWire `json:"cascade_impacts"`
}

// HTTPChangeDetector calls the change-detection engine over HTTP.
// It implements transfer.ChangeDetector.
type HTTPChangeDetector struct {
	c *client
}

// NewHTTPChangeDetector creates a detector rooted at baseURL
func NewHTTPChangeDetector(baseURL string, timeout time.Duration, opts ...Option) *HTTPChangeDetector {
	c := newClient(baseURL, timeout, opts...)
	c.logger = c.logger.Named("change_detector")
	return &HTTPChangeDetector{c: c}
}

// DetectChangesAndCascadeImpacts asks the engine for the tenant's pending
// deltas. Records with an unknown entity or change type are dropped and logged.
func (d *HTTPChangeDetector) DetectChangesAndCascadeImpacts(ctx context.Context, tenantID uuid.UUID) (*transfer.DetectionResult, error) {
	var wire detectionWire
	path := fmt.Sprintf("/v1/tenants/%s/changes/detect", tenantID)
	found, err := d.c.do(ctx, http.MethodPost, path, map[string]any{}, &wire)
	if err != nil {
		return nil, err
	}
	result := &transfer.DetectionResult{}
	if !found {
		return result, nil
	}

	for _, w := range wire.DetectedChanges {
		ch, err := w.toDomain()
		if err != nil {
			d.c.logger.Warn("Skipping detected change", zap.String("entity_id", w.EntityID), zap.Error(err))
			continue
		}
		result.DetectedChanges = append(result.DetectedChanges, ch)
	}

	for _, w := range wire.CascadeImpacts {
		src, err := w.SourceChange.toDomain()
		if err != nil {
			d.c.logger.Warn("Skipping cascade impact", zap.String("source_id", w.SourceChange.EntityID), zap.Error(err))
			continue
		}
		impact := transfer.CascadeImpact{SourceChange: src}
		for _, iw := range w.ImpactedEntities {
			et, err := transfer.ParseEntityType(iw.EntityType)
			if err != nil {
				d.c.logger.Warn("Skipping impacted entity", zap.String("entity_id", iw.EntityID), zap.Error(err))
				continue
			}
			impact.ImpactedEntities = append(impact.ImpactedEntities, transfer.ImpactedEntity{
				EntityType:   et,
				EntityID:     iw.EntityID,
				RequiresSync: iw.RequiresSync,
				Priority:     transfer.CascadePriority(iw.Priority),
			})
		}
		result.CascadeImpacts = append(result.CascadeImpacts, impact)
	}
	return result, nil
}

func (w changeWire) toDomain() (transfer.EntityChange, error) {
	et, err := transfer.ParseEntityType(w.EntityType)
	if err != nil {
		return transfer.EntityChange{}, err
	}
	ct := transfer.ChangeType(w.ChangeType)
	if _, err := ct.Action(); err != nil {
		return transfer.EntityChange{}, err
	}
	prev, err := transfer.DecodeSnapshot(et, w.PreviousData)
	if err != nil {
		return transfer.EntityChange{}, err
	}
	return transfer.EntityChange{
		EntityType:   et,
		EntityID:     w.EntityID,
		ChangeType:   ct,
		PreviousData: prev,
	}, nil
}
