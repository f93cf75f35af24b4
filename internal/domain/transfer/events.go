package transfer

import (
	"time"

	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// Event types raised by QueueEntry
const (
	EventTypeEntryEnqueued    = "TransferEntryEnqueued"
	EventTypeEntryApproved    = "TransferEntryApproved"
	EventTypeEntryRejected    = "TransferEntryRejected"
	EventTypeEntryTransferred = "TransferEntryTransferred"
	EventTypeEntryFailed      = "TransferEntryFailed"
)

// EntryEnqueuedEvent is raised when a change is queued for review
type EntryEnqueuedEvent struct {
	shared.BaseDomainEvent
	EntityType    EntityType `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	ActionType    ActionType `json:"action_type"`
	TriggerReason string     `json:"trigger_reason"`
}

// NewEntryEnqueuedEvent creates an EntryEnqueuedEvent
func NewEntryEnqueuedEvent(e *QueueEntry) *EntryEnqueuedEvent {
	return &EntryEnqueuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEntryEnqueued, AggregateTypeQueueEntry, e.ID, e.TenantID),
		EntityType:      e.EntityType,
		EntityID:        e.EntityID,
		ActionType:      e.ActionType,
		TriggerReason:   e.TriggerReason,
	}
}

// EntryApprovedEvent is raised when a reviewer approves an entry
type EntryApprovedEvent struct {
	shared.BaseDomainEvent
	EntityType EntityType `json:"entity_type"`
	ApprovedBy string     `json:"approved_by"`
	// WaitTime is how long the entry sat in the queue before approval
	WaitTime time.Duration `json:"wait_time"`
}

// NewEntryApprovedEvent creates an EntryApprovedEvent
func NewEntryApprovedEvent(e *QueueEntry) *EntryApprovedEvent {
	var wait time.Duration
	if e.ApprovedAt != nil {
		wait = e.ApprovedAt.Sub(e.CreatedAt)
	}
	return &EntryApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEntryApproved, AggregateTypeQueueEntry, e.ID, e.TenantID),
		EntityType:      e.EntityType,
		ApprovedBy:      e.ApprovedBy,
		WaitTime:        wait,
	}
}

// EntryRejectedEvent is raised when a reviewer rejects an entry
type EntryRejectedEvent struct {
	shared.BaseDomainEvent
	EntityType EntityType `json:"entity_type"`
	RejectedBy string     `json:"rejected_by"`
	Reason     string     `json:"reason"`
}

// NewEntryRejectedEvent creates an EntryRejectedEvent
func NewEntryRejectedEvent(e *QueueEntry) *EntryRejectedEvent {
	return &EntryRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEntryRejected, AggregateTypeQueueEntry, e.ID, e.TenantID),
		EntityType:      e.EntityType,
		RejectedBy:      e.RejectedBy,
		Reason:          e.RejectionReason,
	}
}

// EntryTransferredEvent is raised when the transfer worker reports success
type EntryTransferredEvent struct {
	shared.BaseDomainEvent
	EntityType         EntityType `json:"entity_type"`
	ExternalTransferID string     `json:"external_transfer_id"`
	Attempts           int        `json:"attempts"`
}

// NewEntryTransferredEvent creates an EntryTransferredEvent
func NewEntryTransferredEvent(e *QueueEntry) *EntryTransferredEvent {
	return &EntryTransferredEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeEntryTransferred, AggregateTypeQueueEntry, e.ID, e.TenantID),
		EntityType:         e.EntityType,
		ExternalTransferID: e.ExternalTransferID,
		Attempts:           e.RetryCount + 1,
	}
}

// EntryFailedEvent is raised for every recorded transfer failure
type EntryFailedEvent struct {
	shared.BaseDomainEvent
	EntityType  EntityType `json:"entity_type"`
	Error       string     `json:"error"`
	RetryCount  int        `json:"retry_count"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	// Terminal is true when the entry reached FAILED and needs a human
	Terminal bool `json:"terminal"`
}

// NewEntryFailedEvent creates an EntryFailedEvent
func NewEntryFailedEvent(e *QueueEntry, terminal bool) *EntryFailedEvent {
	return &EntryFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEntryFailed, AggregateTypeQueueEntry, e.ID, e.TenantID),
		EntityType:      e.EntityType,
		Error:           e.TransferError,
		RetryCount:      e.RetryCount,
		NextRetryAt:     e.NextRetryAt,
		Terminal:        terminal,
	}
}
