package transfer

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
)

// QueueEntryResponse is the read model of a queue entry
type QueueEntryResponse struct {
	ID                 uuid.UUID         `json:"id"`
	TenantID           uuid.UUID         `json:"tenant_id"`
	EntityType         string            `json:"entity_type"`
	EntityID           string            `json:"entity_id"`
	ActionType         string            `json:"action_type"`
	Status             string            `json:"status"`
	TriggerReason      string            `json:"trigger_reason"`
	HighPriority       bool              `json:"high_priority"`
	EntityData         transfer.Snapshot `json:"entity_data"`
	OriginalData       transfer.Snapshot `json:"original_data,omitempty"`
	ApprovedBy         string            `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time        `json:"approved_at,omitempty"`
	ValidationNotes    string            `json:"validation_notes,omitempty"`
	RejectedBy         string            `json:"rejected_by,omitempty"`
	RejectedAt         *time.Time        `json:"rejected_at,omitempty"`
	RejectionReason    string            `json:"rejection_reason,omitempty"`
	TransferredAt      *time.Time        `json:"transferred_at,omitempty"`
	ExternalTransferID string            `json:"external_transfer_id,omitempty"`
	TransferError      string            `json:"transfer_error,omitempty"`
	RetryCount         int               `json:"retry_count"`
	NextRetryAt        *time.Time        `json:"next_retry_at,omitempty"`
	Version            int               `json:"version"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ToQueueEntryResponse maps a domain entry to its read model
func ToQueueEntryResponse(e *transfer.QueueEntry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:                 e.ID,
		TenantID:           e.TenantID,
		EntityType:         string(e.EntityType),
		EntityID:           e.EntityID,
		ActionType:         string(e.ActionType),
		Status:             string(e.Status),
		TriggerReason:      e.TriggerReason,
		HighPriority:       e.IsHighPriority(),
		EntityData:         e.EntityData,
		OriginalData:       e.OriginalData,
		ApprovedBy:         e.ApprovedBy,
		ApprovedAt:         e.ApprovedAt,
		ValidationNotes:    e.ValidationNotes,
		RejectedBy:         e.RejectedBy,
		RejectedAt:         e.RejectedAt,
		RejectionReason:    e.RejectionReason,
		TransferredAt:      e.TransferredAt,
		ExternalTransferID: e.ExternalTransferID,
		TransferError:      e.TransferError,
		RetryCount:         e.RetryCount,
		NextRetryAt:        e.NextRetryAt,
		Version:            e.Version,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

// ToQueueEntryResponses maps a slice of entries
func ToQueueEntryResponses(entries []*transfer.QueueEntry) []QueueEntryResponse {
	out := make([]QueueEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = ToQueueEntryResponse(e)
	}
	return out
}

// EnqueueOutcome explains what Enqueue did with a change
type EnqueueOutcome string

const (
	OutcomeEnqueued EnqueueOutcome = "enqueued"
	// OutcomeDuplicate means an active entry already covers the entity
	OutcomeDuplicate EnqueueOutcome = "duplicate"
	// OutcomeUnavailable means the entity could not be materialized
	OutcomeUnavailable EnqueueOutcome = "entity_unavailable"
)

// EnqueueResult is returned by Enqueue
type EnqueueResult struct {
	Outcome EnqueueOutcome      `json:"outcome"`
	Entry   *QueueEntryResponse `json:"entry,omitempty"`
}

// ProcessResult summarizes one change-detection sweep
type ProcessResult struct {
	NewEntries          int           `json:"new_entries"`
	CascadeEntries      int           `json:"cascade_entries"`
	HighPriorityEntries int           `json:"high_priority_entries"`
	Duplicates          int           `json:"duplicates"`
	Unavailable         int           `json:"unavailable"`
	Errors              []string      `json:"errors,omitempty"`
	Duration            time.Duration `json:"duration"`
}

// PendingQuery filters GetPendingEntries
type PendingQuery struct {
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=500"`
	EntityType string `form:"entity_type" binding:"omitempty,entity_type"`
}

// ApproveRequest approves one entry
type ApproveRequest struct {
	ApprovedBy string `json:"approved_by"`
	Notes      string `json:"notes" binding:"max=2000"`
}

// RejectRequest rejects one entry
type RejectRequest struct {
	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason" binding:"required,max=2000"`
	Notes      string `json:"notes" binding:"max=2000"`
}

// BulkApproveRequest approves several entries independently
type BulkApproveRequest struct {
	EntryIDs   []uuid.UUID `json:"entry_ids" binding:"required,min=1,max=500,dive,required"`
	ApprovedBy string      `json:"approved_by"`
	Notes      string      `json:"notes" binding:"max=2000"`
}

// BulkItemResult is the outcome for one id of a bulk approve
type BulkItemResult struct {
	EntryID uuid.UUID `json:"entry_id"`
	Success bool      `json:"success"`
	Code    string    `json:"code,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// BulkApproveResult reports per-id results and the projected transfer time
type BulkApproveResult struct {
	Results               []BulkItemResult `json:"results"`
	Approved              int              `json:"approved"`
	Failed                int              `json:"failed"`
	EstimatedTransferTime time.Duration    `json:"estimated_transfer_time"`
}

// MarkTransferredRequest reports a successful transfer
type MarkTransferredRequest struct {
	ExternalID string `json:"external_id" binding:"required,max=255"`
}

// MarkFailedRequest reports a failed transfer. IncrementRetry defaults to true.
type MarkFailedRequest struct {
	Error          string `json:"error" binding:"max=4000"`
	IncrementRetry *bool  `json:"increment_retry"`
}

// QueueSummary aggregates the queue of a tenant
type QueueSummary struct {
	ByStatus            map[string]int64 `json:"by_status"`
	ByEntityType        map[string]int64 `json:"by_entity_type"`
	TotalPendingReview  int64            `json:"total_pending_review"`
	TotalApproved       int64            `json:"total_approved"`
	TotalRejected       int64            `json:"total_rejected"`
	TotalTransferred    int64            `json:"total_transferred"`
	TotalFailed         int64            `json:"total_failed"`
	OldestPendingAt     *time.Time       `json:"oldest_pending_at,omitempty"`
	EstimatedReviewTime time.Duration    `json:"estimated_review_time"`
}

// CleanupResult reports a cleanup run
type CleanupResult struct {
	Deleted int64     `json:"deleted"`
	Cutoff  time.Time `json:"cutoff"`
}
