package transfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// Retry policy
const (
	MaxTransferRetries = 3
	BaseRetryDelay     = 60 * time.Second
	MaxRetryDelay      = 24 * time.Hour
)

// AggregateTypeQueueEntry is the aggregate type used on domain events
const AggregateTypeQueueEntry = "TransferQueueEntry"

// RetryDelay returns the backoff before the next automatic attempt, given
// the retry count before the failure being recorded: 60s, 120s, 240s, ...
// capped at 24h
func RetryDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	// 2^11 minutes already exceeds the cap
	if retryCount > 10 {
		return MaxRetryDelay
	}
	delay := BaseRetryDelay * time.Duration(1<<uint(retryCount))
	if delay > MaxRetryDelay {
		return MaxRetryDelay
	}
	return delay
}

// QueueEntry is a detected entity change awaiting review and transfer
type QueueEntry struct {
	shared.TenantAggregateRoot
	EntityType    EntityType
	EntityID      string
	ActionType    ActionType
	Status        Status
	TriggerReason string
	// EntityData is the full snapshot taken when the entry was enqueued
	EntityData Snapshot
	// OriginalData is the pre-change snapshot, if the detector supplied one
	OriginalData Snapshot

	ApprovedBy      string
	ApprovedAt      *time.Time
	ValidationNotes string

	RejectedBy      string
	RejectedAt      *time.Time
	RejectionReason string

	TransferredAt      *time.Time
	ExternalTransferID string
	TransferError      string

	RetryCount  int
	NextRetryAt *time.Time
}

// NewQueueEntry creates a PENDING_REVIEW entry for a change
func NewQueueEntry(
	tenantID uuid.UUID,
	entityType EntityType,
	entityID string,
	action ActionType,
	triggerReason string,
	data Snapshot,
	original Snapshot,
) (*QueueEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant ID is required")
	}
	if !entityType.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("unsupported entity type %q", entityType))
	}
	if strings.TrimSpace(entityID) == "" {
		return nil, shared.NewValidationError("entity ID is required")
	}
	if !action.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("unsupported action type %q", action))
	}
	if data == nil {
		return nil, shared.NewValidationError("entity data is required")
	}
	if data.EntityType() != entityType {
		return nil, shared.NewValidationError(fmt.Sprintf(
			"entity data is a %s snapshot, expected %s", data.EntityType(), entityType))
	}
	if triggerReason == "" {
		triggerReason = TriggerDirectChange
	}

	e := &QueueEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		EntityType:          entityType,
		EntityID:            entityID,
		ActionType:          action,
		Status:              StatusPendingReview,
		TriggerReason:       triggerReason,
		EntityData:          data,
		OriginalData:        original,
	}
	e.AddDomainEvent(NewEntryEnqueuedEvent(e))
	return e, nil
}

// IsHighPriority reports whether the entry concerns a financially significant entity
func (e *QueueEntry) IsHighPriority() bool {
	return e.EntityType.IsHighPriority()
}

// IsDueForTransfer reports whether a transfer worker may pick the entry up
func (e *QueueEntry) IsDueForTransfer(now time.Time) bool {
	return e.Status == StatusApproved && (e.NextRetryAt == nil || !e.NextRetryAt.After(now))
}

// Approve moves the entry to APPROVED. Approving a FAILED entry is the
// manual re-approval that resumes automatic retries from zero.
func (e *QueueEntry) Approve(approvedBy, notes string) error {
	if strings.TrimSpace(approvedBy) == "" {
		return shared.NewValidationError("approvedBy is required")
	}
	switch e.Status {
	case StatusPendingReview:
	case StatusFailed:
		e.RetryCount = 0
		e.NextRetryAt = nil
	default:
		return shared.NewInvalidStateError(fmt.Sprintf("cannot approve entry in status %s", e.Status))
	}

	now := time.Now()
	e.Status = StatusApproved
	e.ApprovedBy = approvedBy
	e.ApprovedAt = &now
	if notes != "" {
		e.ValidationNotes = notes
	}
	e.UpdatedAt = now
	e.AddDomainEvent(NewEntryApprovedEvent(e))
	return nil
}

// Reject moves a PENDING_REVIEW entry to REJECTED
func (e *QueueEntry) Reject(rejectedBy, reason, notes string) error {
	if strings.TrimSpace(rejectedBy) == "" {
		return shared.NewValidationError("rejectedBy is required")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("rejection reason is required")
	}
	if e.Status != StatusPendingReview {
		return shared.NewInvalidStateError(fmt.Sprintf("cannot reject entry in status %s", e.Status))
	}

	now := time.Now()
	e.Status = StatusRejected
	e.RejectedBy = rejectedBy
	e.RejectedAt = &now
	e.RejectionReason = reason
	if notes != "" {
		e.ValidationNotes = notes
	}
	e.UpdatedAt = now
	e.AddDomainEvent(NewEntryRejectedEvent(e))
	return nil
}

// MarkTransferred records a successful push to the accounting platform
func (e *QueueEntry) MarkTransferred(externalID string) error {
	if strings.TrimSpace(externalID) == "" {
		return shared.NewValidationError("external transfer ID is required")
	}
	if e.Status != StatusApproved {
		return shared.NewInvalidStateError(fmt.Sprintf("cannot mark entry in status %s as transferred", e.Status))
	}

	now := time.Now()
	e.Status = StatusTransferred
	e.TransferredAt = &now
	e.ExternalTransferID = externalID
	e.TransferError = ""
	e.NextRetryAt = nil
	e.UpdatedAt = now
	e.AddDomainEvent(NewEntryTransferredEvent(e))
	return nil
}

// MarkFailed records a failed transfer attempt.
//
// With incrementRetry the retry count goes up by one and the next attempt is
// scheduled after RetryDelay; once MaxTransferRetries is reached the entry
// becomes FAILED. An APPROVED entry stays APPROVED while retries remain; an
// entry still awaiting review stays PENDING_REVIEW so a failure never bypasses
// review. Without incrementRetry the failure is treated as permanent and the
// entry becomes FAILED immediately.
func (e *QueueEntry) MarkFailed(errMsg string, incrementRetry bool) error {
	if e.Status != StatusApproved && e.Status != StatusPendingReview {
		return shared.NewInvalidStateError(fmt.Sprintf("cannot mark entry in status %s as failed", e.Status))
	}
	if errMsg == "" {
		errMsg = "transfer failed"
	}

	now := time.Now()
	e.TransferError = errMsg
	e.UpdatedAt = now

	if !incrementRetry {
		e.Status = StatusFailed
		e.NextRetryAt = nil
		e.AddDomainEvent(NewEntryFailedEvent(e, true))
		return nil
	}

	next := now.Add(RetryDelay(e.RetryCount))
	e.RetryCount++
	e.NextRetryAt = &next
	if e.RetryCount >= MaxTransferRetries {
		e.Status = StatusFailed
		e.AddDomainEvent(NewEntryFailedEvent(e, true))
		return nil
	}
	e.AddDomainEvent(NewEntryFailedEvent(e, false))
	return nil
}
