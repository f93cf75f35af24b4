package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/audit"
	"gorm.io/datatypes"
)

// ConfigurationAuditLogModel is the persistence model for audit.LogEntry.
// Rows are append-only; only reviewed_at and reviewed_by are ever updated.
type ConfigurationAuditLogModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_tenant_created,priority:1;index:idx_audit_tenant_review,priority:1"`
	EntityType     string    `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:1"`
	EntityID       uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2"`
	Action         string    `gorm:"type:varchar(20);not null"`
	PerformedBy    string    `gorm:"type:varchar(100);not null"`
	RiskLevel      string    `gorm:"type:varchar(20);not null"`
	Platform       string    `gorm:"type:varchar(20)"`
	Metadata       datatypes.JSONMap
	RequiresReview bool `gorm:"not null;default:false;index:idx_audit_tenant_review,priority:2"`
	ReviewedAt     *time.Time
	ReviewedBy     string    `gorm:"type:varchar(100)"`
	CreatedAt      time.Time `gorm:"not null;index:idx_audit_tenant_created,priority:2"`
}

// TableName returns the table name for GORM
func (ConfigurationAuditLogModel) TableName() string {
	return "configuration_audit_logs"
}

// ToDomain converts the persistence model to a domain LogEntry.
func (m *ConfigurationAuditLogModel) ToDomain() *audit.LogEntry {
	metadata := map[string]any{}
	for k, v := range m.Metadata {
		metadata[k] = v
	}
	return &audit.LogEntry{
		ID:             m.ID,
		TenantID:       m.TenantID,
		EntityType:     m.EntityType,
		EntityID:       m.EntityID,
		Action:         audit.Action(m.Action),
		PerformedBy:    m.PerformedBy,
		RiskLevel:      audit.RiskLevel(m.RiskLevel),
		Platform:       m.Platform,
		Metadata:       metadata,
		RequiresReview: m.RequiresReview,
		ReviewedAt:     m.ReviewedAt,
		ReviewedBy:     m.ReviewedBy,
		CreatedAt:      m.CreatedAt,
	}
}

// ConfigurationAuditLogModelFromDomain creates a new persistence model from a domain LogEntry.
func ConfigurationAuditLogModelFromDomain(e *audit.LogEntry) *ConfigurationAuditLogModel {
	return &ConfigurationAuditLogModel{
		ID:             e.ID,
		TenantID:       e.TenantID,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		Action:         string(e.Action),
		PerformedBy:    e.PerformedBy,
		RiskLevel:      string(e.RiskLevel),
		Platform:       e.Platform,
		Metadata:       datatypes.JSONMap(e.Metadata),
		RequiresReview: e.RequiresReview,
		ReviewedAt:     e.ReviewedAt,
		ReviewedBy:     e.ReviewedBy,
		CreatedAt:      e.CreatedAt,
	}
}

// All returns every model managed by AutoMigrate in tests
func All() []any {
	return []any{
		&TransferQueueEntryModel{},
		&IntegrationConfigModel{},
		&WebhookConfigModel{},
		&ConfigurationAuditLogModel{},
	}
}
