package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateActiveEntry is returned by QueueRepository.Create when another
// PENDING_REVIEW or APPROVED entry already exists for the same entity
var ErrDuplicateActiveEntry = errors.New("transfer: active queue entry already exists for entity")

// PendingFilter narrows the pending-review listing
type PendingFilter struct {
	Limit      int
	EntityType *EntityType
}

// QueueStats is the raw aggregate behind the queue summary
type QueueStats struct {
	ByStatus        map[Status]int64
	ByEntityType    map[EntityType]int64
	OldestPendingAt *time.Time
}

// QueueRepository persists transfer queue entries
type QueueRepository interface {
	// Create inserts a new entry, returning ErrDuplicateActiveEntry when the
	// dedup constraint rejects it
	Create(ctx context.Context, entry *QueueEntry) error
	// Update saves a mutated entry guarded by its version; a stale version
	// yields shared.ErrConcurrencyConflict. On success the entry's version is bumped.
	Update(ctx context.Context, entry *QueueEntry) error
	// FindByID returns shared.ErrNotFound when absent
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*QueueEntry, error)
	// FindActiveByEntity returns the PENDING_REVIEW or APPROVED entry for an
	// entity, or nil when there is none
	FindActiveByEntity(ctx context.Context, tenantID uuid.UUID, entityType EntityType, entityID string) (*QueueEntry, error)
	// FindPending lists PENDING_REVIEW entries oldest first
	FindPending(ctx context.Context, tenantID uuid.UUID, filter PendingFilter) ([]*QueueEntry, error)
	// FindDueApproved lists APPROVED entries whose next retry is unset or
	// not after now, ordered by approval time
	FindDueApproved(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]*QueueEntry, error)
	// Stats aggregates counts by status and entity type
	Stats(ctx context.Context, tenantID uuid.UUID) (*QueueStats, error)
	// DeleteFinishedBefore hard-deletes TRANSFERRED and REJECTED entries last
	// updated before cutoff. uuid.Nil as tenantID sweeps every tenant.
	DeleteFinishedBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error)
}
