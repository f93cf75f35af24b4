package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
	"gorm.io/datatypes"
)

// TransferQueueEntryModel is the persistence model for the QueueEntry aggregate root.
type TransferQueueEntryModel struct {
	AggregateModel
	TenantID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_transfer_queue_active_entity,priority:1,where:status = 'PENDING_REVIEW' OR status = 'APPROVED';index:idx_transfer_queue_tenant_status,priority:1"`
	EntityType         string         `gorm:"type:varchar(20);not null;uniqueIndex:idx_transfer_queue_active_entity,priority:2"`
	EntityID           string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_transfer_queue_active_entity,priority:3"`
	ActionType         string         `gorm:"type:varchar(10);not null"`
	Status             string         `gorm:"type:varchar(20);not null;index:idx_transfer_queue_tenant_status,priority:2"`
	TriggerReason      string         `gorm:"type:varchar(100);not null"`
	EntityData         datatypes.JSON `gorm:"not null"`
	OriginalData       datatypes.JSON
	ApprovedBy         string `gorm:"type:varchar(100)"`
	ApprovedAt         *time.Time
	ValidationNotes    string `gorm:"type:text"`
	RejectedBy         string `gorm:"type:varchar(100)"`
	RejectedAt         *time.Time
	RejectionReason    string `gorm:"type:text"`
	TransferredAt      *time.Time
	ExternalTransferID string `gorm:"type:varchar(255)"`
	TransferError      string `gorm:"type:text"`
	RetryCount         int    `gorm:"not null;default:0"`
	NextRetryAt        *time.Time
}

// TableName returns the table name for GORM
func (TransferQueueEntryModel) TableName() string {
	return "transfer_queue_entries"
}

// ToDomain converts the persistence model to a domain QueueEntry.
// A snapshot that no longer decodes is reported as an error.
func (m *TransferQueueEntryModel) ToDomain() (*transfer.QueueEntry, error) {
	entityType := transfer.EntityType(m.EntityType)
	data, err := transfer.DecodeSnapshot(entityType, m.EntityData)
	if err != nil {
		return nil, fmt.Errorf("queue entry %s: %w", m.ID, err)
	}
	original, err := transfer.DecodeSnapshot(entityType, m.OriginalData)
	if err != nil {
		return nil, fmt.Errorf("queue entry %s: %w", m.ID, err)
	}

	e := &transfer.QueueEntry{
		EntityType:         entityType,
		EntityID:           m.EntityID,
		ActionType:         transfer.ActionType(m.ActionType),
		Status:             transfer.Status(m.Status),
		TriggerReason:      m.TriggerReason,
		EntityData:         data,
		OriginalData:       original,
		ApprovedBy:         m.ApprovedBy,
		ApprovedAt:         m.ApprovedAt,
		ValidationNotes:    m.ValidationNotes,
		RejectedBy:         m.RejectedBy,
		RejectedAt:         m.RejectedAt,
		RejectionReason:    m.RejectionReason,
		TransferredAt:      m.TransferredAt,
		ExternalTransferID: m.ExternalTransferID,
		TransferError:      m.TransferError,
		RetryCount:         m.RetryCount,
		NextRetryAt:        m.NextRetryAt,
	}
	m.PopulateTenantAggregateRoot(&e.TenantAggregateRoot, m.TenantID)
	return e, nil
}

// FromDomain populates the persistence model from a domain QueueEntry.
func (m *TransferQueueEntryModel) FromDomain(e *transfer.QueueEntry) error {
	data, err := transfer.EncodeSnapshot(e.EntityData)
	if err != nil {
		return fmt.Errorf("encode entity data: %w", err)
	}
	original, err := transfer.EncodeSnapshot(e.OriginalData)
	if err != nil {
		return fmt.Errorf("encode original data: %w", err)
	}

	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	m.TenantID = e.TenantID
	m.EntityType = string(e.EntityType)
	m.EntityID = e.EntityID
	m.ActionType = string(e.ActionType)
	m.Status = string(e.Status)
	m.TriggerReason = e.TriggerReason
	m.EntityData = datatypes.JSON(data)
	m.OriginalData = nil
	if original != nil {
		m.OriginalData = datatypes.JSON(original)
	}
	m.ApprovedBy = e.ApprovedBy
	m.ApprovedAt = e.ApprovedAt
	m.ValidationNotes = e.ValidationNotes
	m.RejectedBy = e.RejectedBy
	m.RejectedAt = e.RejectedAt
	m.RejectionReason = e.RejectionReason
	m.TransferredAt = e.TransferredAt
	m.ExternalTransferID = e.ExternalTransferID
	m.TransferError = e.TransferError
	m.RetryCount = e.RetryCount
	m.NextRetryAt = e.NextRetryAt
	return nil
}

// MutableColumns returns the columns a state transition may change
func (m *TransferQueueEntryModel) MutableColumns() map[string]any {
	return map[string]any{
		"status":               m.Status,
		"approved_by":          m.ApprovedBy,
		"approved_at":          m.ApprovedAt,
		"validation_notes":     m.ValidationNotes,
		"rejected_by":          m.RejectedBy,
		"rejected_at":          m.RejectedAt,
		"rejection_reason":     m.RejectionReason,
		"transferred_at":       m.TransferredAt,
		"external_transfer_id": m.ExternalTransferID,
		"transfer_error":       m.TransferError,
		"retry_count":          m.RetryCount,
		"next_retry_at":        m.NextRetryAt,
		"updated_at":           m.UpdatedAt,
	}
}

// TransferQueueEntryModelFromDomain creates a new persistence model from a domain QueueEntry.
func TransferQueueEntryModelFromDomain(e *transfer.QueueEntry) (*TransferQueueEntryModel, error) {
	m := &TransferQueueEntryModel{}
	if err := m.FromDomain(e); err != nil {
		return nil, err
	}
	return m, nil
}
