package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/audit"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
	"github.com/ledgerbridge/backend/internal/infrastructure/logger"
	"github.com/ledgerbridge/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// auditEntityType labels queue decisions in the audit log
const auditEntityType = "transfer_queue_entry"

// Settings holds the queue defaults
type Settings struct {
	PendingLimit         int
	ApprovedLimit        int
	ReviewTimePerEntry   time.Duration
	TransferTimePerEntry time.Duration
	CleanupRetentionDays int
}

// DefaultSettings returns the stock queue defaults
func DefaultSettings() Settings {
	return Settings{
		PendingLimit:         50,
		ApprovedLimit:        50,
		ReviewTimePerEntry:   2 * time.Minute,
		TransferTimePerEntry: 30 * time.Second,
		CleanupRetentionDays: 30,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.PendingLimit <= 0 {
		s.PendingLimit = d.PendingLimit
	}
	if s.ApprovedLimit <= 0 {
		s.ApprovedLimit = d.ApprovedLimit
	}
	if s.ReviewTimePerEntry <= 0 {
		s.ReviewTimePerEntry = d.ReviewTimePerEntry
	}
	if s.TransferTimePerEntry <= 0 {
		s.TransferTimePerEntry = d.TransferTimePerEntry
	}
	if s.CleanupRetentionDays <= 0 {
		s.CleanupRetentionDays = d.CleanupRetentionDays
	}
	return s
}

// OutcomeRecorder feeds transfer results into the accounting integration's
// circuit breaker
type OutcomeRecorder interface {
	RecordIntegrationOutcome(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, success bool) error
}

// QueueService owns the approval workflow of detected entity changes
type QueueService struct {
	repo      transfer.QueueRepository
	auditRepo audit.Repository
	tx        shared.TxRunner
	detector  transfer.ChangeDetector
	entities  transfer.EntityDataProvider
	settings  Settings

	events   shared.EventPublisher
	outcomes OutcomeRecorder
	logger   *zap.Logger
}

// NewQueueService creates a QueueService
func NewQueueService(
	repo transfer.QueueRepository,
	auditRepo audit.Repository,
	tx shared.TxRunner,
	detector transfer.ChangeDetector,
	entities transfer.EntityDataProvider,
	settings Settings,
) *QueueService {
	return &QueueService{
		repo:      repo,
		auditRepo: auditRepo,
		tx:        tx,
		detector:  detector,
		entities:  entities,
		settings:  settings.withDefaults(),
		events:    shared.NoopEventPublisher{},
		logger:    zap.NewNop(),
	}
}

// SetEventPublisher sets the publisher that receives queue events after commit
func (s *QueueService) SetEventPublisher(p shared.EventPublisher) {
	s.events = p
}

// SetOutcomeRecorder sets the breaker feed used by MarkTransferred/MarkFailed
func (s *QueueService) SetOutcomeRecorder(r OutcomeRecorder) {
	s.outcomes = r
}

// SetLogger sets the fallback logger used when ctx carries none
func (s *QueueService) SetLogger(l *zap.Logger) {
	s.logger = l.Named("transfer_queue")
}

func (s *QueueService) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// Enqueue queues a single change. A change whose entity already has an
// active entry, or whose entity cannot be materialized, is a no-op reported
// through the result outcome.
func (s *QueueService) Enqueue(ctx context.Context, tenantID uuid.UUID, change transfer.EntityChange, triggerReason string) (res *EnqueueResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_queue", "enqueue",
		attribute.String(telemetry.AttrTenantID, tenantID.String()),
		attribute.String(telemetry.AttrEntityType, string(change.EntityType)))
	defer func() { telemetry.End(span, err) }()

	if !change.EntityType.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("unsupported entity type %q", change.EntityType))
	}
	action, err := change.ChangeType.Action()
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindActiveByEntity(ctx, tenantID, change.EntityType, change.EntityID)
	if err != nil {
		return nil, fmt.Errorf("check active entry: %w", err)
	}
	if existing != nil {
		resp := ToQueueEntryResponse(existing)
		return &EnqueueResult{Outcome: OutcomeDuplicate, Entry: &resp}, nil
	}

	data, err := transfer.FetchSnapshot(ctx, s.entities, tenantID, change.EntityType, change.EntityID)
	if err != nil {
		s.log(ctx).Warn("entity data unavailable, change not queued",
			zap.String("entity_type", string(change.EntityType)),
			zap.String("entity_id", change.EntityID),
			zap.Error(err))
		return &EnqueueResult{Outcome: OutcomeUnavailable}, nil
	}
	if data == nil && action == transfer.ActionTypeDelete {
		// a deleted record is materialized from its last known state
		data = change.PreviousData
	}
	if data == nil {
		s.log(ctx).Warn("entity not found, change not queued",
			zap.String("entity_type", string(change.EntityType)),
			zap.String("entity_id", change.EntityID))
		return &EnqueueResult{Outcome: OutcomeUnavailable}, nil
	}

	entry, err := transfer.NewQueueEntry(tenantID, change.EntityType, change.EntityID, action, triggerReason, data, change.PreviousData)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		if errors.Is(err, transfer.ErrDuplicateActiveEntry) {
			return &EnqueueResult{Outcome: OutcomeDuplicate}, nil
		}
		return nil, fmt.Errorf("create queue entry: %w", err)
	}
	s.publish(ctx, entry)

	s.log(ctx).Info("change queued for review",
		zap.String("entry_id", entry.ID.String()),
		zap.String("entity_type", string(entry.EntityType)),
		zap.String("entity_id", entry.EntityID),
		zap.String("trigger_reason", entry.TriggerReason))

	resp := ToQueueEntryResponse(entry)
	return &EnqueueResult{Outcome: OutcomeEnqueued, Entry: &resp}, nil
}

// ProcessChanges runs one change-detection sweep for a tenant: one entry
// per direct change, then one per cascade-impacted entity that requires
// sync. Failures on individual changes are collected, never fatal.
func (s *QueueService) ProcessChanges(ctx context.Context, tenantID uuid.UUID) (res *ProcessResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_queue", "process_changes",
		attribute.String(telemetry.AttrTenantID, tenantID.String()))
	defer func() { telemetry.End(span, err) }()

	start := time.Now()
	detected, err := s.detector.DetectChangesAndCascadeImpacts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("detect changes: %w", err)
	}

	res = &ProcessResult{}
	if detected == nil {
		res.Duration = time.Since(start)
		return res, nil
	}
	tally := func(change transfer.EntityChange, reason string, highPriority bool, cascade bool) {
		r, err := s.Enqueue(ctx, tenantID, change, reason)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %v", change.EntityType, change.EntityID, err))
			return
		}
		switch r.Outcome {
		case OutcomeDuplicate:
			res.Duplicates++
		case OutcomeUnavailable:
			res.Unavailable++
		case OutcomeEnqueued:
			if cascade {
				res.CascadeEntries++
			} else {
				res.NewEntries++
			}
			if highPriority {
				res.HighPriorityEntries++
			}
		}
	}

	for _, change := range detected.DetectedChanges {
		tally(change, transfer.TriggerDirectChange, change.EntityType.IsHighPriority(), false)
	}
	for _, impact := range detected.CascadeImpacts {
		reason := transfer.CascadeTrigger(impact.SourceChange.EntityType)
		for _, ent := range impact.ImpactedEntities {
			if !ent.RequiresSync {
				continue
			}
			change := transfer.EntityChange{
				EntityType: ent.EntityType,
				EntityID:   ent.EntityID,
				ChangeType: transfer.ChangeTypeUpdated,
			}
			tally(change, reason, ent.EntityType.IsHighPriority() || ent.Priority.IsHigh(), true)
		}
	}
	res.Duration = time.Since(start)

	span.SetAttributes(attribute.Int(telemetry.AttrCount, res.NewEntries+res.CascadeEntries))
	s.log(ctx).Info("change detection processed",
		zap.Int("new_entries", res.NewEntries),
		zap.Int("cascade_entries", res.CascadeEntries),
		zap.Int("high_priority", res.HighPriorityEntries),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("unavailable", res.Unavailable),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// GetEntry returns one entry, or nil when it does not exist
func (s *QueueService) GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*QueueEntryResponse, error) {
	entry, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	resp := ToQueueEntryResponse(entry)
	return &resp, nil
}

// GetPendingEntries lists entries awaiting review in creation order
func (s *QueueService) GetPendingEntries(ctx context.Context, tenantID uuid.UUID, q PendingQuery) ([]QueueEntryResponse, error) {
	filter := transfer.PendingFilter{Limit: q.Limit}
	if filter.Limit <= 0 {
		filter.Limit = s.settings.PendingLimit
	}
	if q.EntityType != "" {
		t, err := transfer.ParseEntityType(q.EntityType)
		if err != nil {
			return nil, err
		}
		filter.EntityType = &t
	}
	entries, err := s.repo.FindPending(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	return ToQueueEntryResponses(entries), nil
}

// GetApprovedEntries is the transfer worker's pull: approved entries that
// are due now, in approval order
func (s *QueueService) GetApprovedEntries(ctx context.Context, tenantID uuid.UUID, limit int) ([]QueueEntryResponse, error) {
	if limit <= 0 {
		limit = s.settings.ApprovedLimit
	}
	entries, err := s.repo.FindDueApproved(ctx, tenantID, time.Now(), limit)
	if err != nil {
		return nil, err
	}
	return ToQueueEntryResponses(entries), nil
}

// Approve approves a PENDING_REVIEW entry, or re-approves a FAILED one
func (s *QueueService) Approve(ctx context.Context, tenantID, id uuid.UUID, req ApproveRequest) (resp *QueueEntryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_queue", "approve",
		attribute.String(telemetry.AttrEntryID, id.String()))
	defer func() { telemetry.End(span, err) }()

	entry, err := s.transition(ctx, tenantID, id, func(e *transfer.QueueEntry) (map[string]any, error) {
		from := e.Status
		if err := e.Approve(req.ApprovedBy, req.Notes); err != nil {
			return nil, err
		}
		return map[string]any{"operation": "approve", "from_status": string(from), "to_status": string(e.Status)}, nil
	}, req.ApprovedBy)
	if err != nil {
		return nil, err
	}
	r := ToQueueEntryResponse(entry)
	return &r, nil
}

// Retry re-approves a FAILED entry, restarting automatic retries from zero
func (s *QueueService) Retry(ctx context.Context, tenantID, id uuid.UUID, req ApproveRequest) (*QueueEntryResponse, error) {
	entry, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != transfer.StatusFailed {
		return nil, shared.NewInvalidStateError(fmt.Sprintf("only FAILED entries can be retried, entry is %s", entry.Status))
	}
	return s.Approve(ctx, tenantID, id, req)
}

// Reject rejects a PENDING_REVIEW entry
func (s *QueueService) Reject(ctx context.Context, tenantID, id uuid.UUID, req RejectRequest) (resp *QueueEntryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_queue", "reject",
		attribute.String(telemetry.AttrEntryID, id.String()))
	defer func() { telemetry.End(span, err) }()

	entry, err := s.transition(ctx, tenantID, id, func(e *transfer.QueueEntry) (map[string]any, error) {
		if err := e.Reject(req.RejectedBy, req.Reason, req.Notes); err != nil {
			return nil, err
		}
		return map[string]any{"operation": "reject", "reason": req.Reason}, nil
	}, req.RejectedBy)
	if err != nil {
		return nil, err
	}
	r := ToQueueEntryResponse(entry)
	return &r, nil
}

// BulkApprove approves each id on its own; one failure never blocks the rest
func (s *QueueService) BulkApprove(ctx context.Context, tenantID uuid.UUID, req BulkApproveRequest) (*BulkApproveResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_queue", "bulk_approve",
		attribute.Int(telemetry.AttrCount, len(req.EntryIDs)))
	defer func() { telemetry.End(span, nil) }()

	res := &BulkApproveResult{Results: make([]BulkItemResult, 0, len(req.EntryIDs))}
	for _, id := range req.EntryIDs {
		_, err := s.Approve(ctx, tenantID, id, ApproveRequest{ApprovedBy: req.ApprovedBy, Notes: req.Notes})
		item := BulkItemResult{EntryID: id, Success: err == nil}
		if err != nil {
			item.Error = err.Error()
			var de *shared.DomainError
			if errors.As(err, &de) {
				item.Code = de.Code
			}
			res.Failed++
		} else {
			res.Approved++
		}
		res.Results = append(res.Results, item)
	}
	res.EstimatedTransferTime = time.Duration(res.Approved) * s.settings.TransferTimePerEntry
	return res, nil
}

// MarkTransferred records a successful transfer and reports the success to
// the accounting breaker
func (s *QueueService) MarkTransferred(ctx context.Context, tenantID, id uuid.UUID, req MarkTransferredRequest) (resp *QueueEntryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_queue", "mark_transferred",
		attribute.String(telemetry.AttrEntryID, id.String()))
	defer func() { telemetry.End(span, err) }()

	entry, err := s.update(ctx, tenantID, id, func(e *transfer.QueueEntry) error {
		return e.MarkTransferred(req.ExternalID)
	})
	if err != nil {
		return nil, err
	}
	s.recordOutcome(ctx, tenantID, true)
	r := ToQueueEntryResponse(entry)
	return &r, nil
}

// MarkFailed records a failed transfer. The failure message is stored on
// the entry and drives the retry schedule; it is never returned as an error.
func (s *QueueService) MarkFailed(ctx context.Context, tenantID, id uuid.UUID, req MarkFailedRequest) (resp *QueueEntryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_queue", "mark_failed",
		attribute.String(telemetry.AttrEntryID, id.String()))
	defer func() { telemetry.End(span, err) }()

	increment := true
	if req.IncrementRetry != nil {
		increment = *req.IncrementRetry
	}
	entry, err := s.update(ctx, tenantID, id, func(e *transfer.QueueEntry) error {
		return e.MarkFailed(req.Error, increment)
	})
	if err != nil {
		return nil, err
	}
	s.recordOutcome(ctx, tenantID, false)

	fields := []zap.Field{
		zap.String("entry_id", entry.ID.String()),
		zap.Int("retry_count", entry.RetryCount),
		zap.String("status", string(entry.Status)),
	}
	if entry.NextRetryAt != nil {
		fields = append(fields, zap.Time("next_retry_at", *entry.NextRetryAt))
	}
	s.log(ctx).Warn("transfer failed", fields...)

	r := ToQueueEntryResponse(entry)
	return &r, nil
}

// GetQueueSummary aggregates the tenant's queue
func (s *QueueService) GetQueueSummary(ctx context.Context, tenantID uuid.UUID) (*QueueSummary, error) {
	stats, err := s.repo.Stats(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sum := &QueueSummary{
		ByStatus:        make(map[string]int64, len(transfer.AllStatuses())),
		ByEntityType:    make(map[string]int64, len(transfer.AllEntityTypes())),
		OldestPendingAt: stats.OldestPendingAt,
	}
	for _, st := range transfer.AllStatuses() {
		sum.ByStatus[string(st)] = stats.ByStatus[st]
	}
	for _, t := range transfer.AllEntityTypes() {
		sum.ByEntityType[string(t)] = stats.ByEntityType[t]
	}
	sum.TotalPendingReview = stats.ByStatus[transfer.StatusPendingReview]
	sum.TotalApproved = stats.ByStatus[transfer.StatusApproved]
	sum.TotalRejected = stats.ByStatus[transfer.StatusRejected]
	sum.TotalTransferred = stats.ByStatus[transfer.StatusTransferred]
	sum.TotalFailed = stats.ByStatus[transfer.StatusFailed]
	sum.EstimatedReviewTime = time.Duration(sum.TotalPendingReview) * s.settings.ReviewTimePerEntry
	return sum, nil
}

// CleanupOldEntries hard-deletes TRANSFERRED and REJECTED entries not
// updated for olderThanDays (the configured retention when <= 0).
// uuid.Nil as tenantID cleans every tenant.
func (s *QueueService) CleanupOldEntries(ctx context.Context, tenantID uuid.UUID, olderThanDays int) (res *CleanupResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_queue", "cleanup")
	defer func() { telemetry.End(span, err) }()

	if olderThanDays <= 0 {
		olderThanDays = s.settings.CleanupRetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	deleted, err := s.repo.DeleteFinishedBefore(ctx, tenantID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("cleanup queue entries: %w", err)
	}
	if deleted > 0 {
		s.log(ctx).Info("old queue entries removed",
			zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return &CleanupResult{Deleted: deleted, Cutoff: cutoff}, nil
}

// transition applies a reviewer decision and its audit record in one
// transaction, then publishes the entry's events
func (s *QueueService) transition(
	ctx context.Context,
	tenantID, id uuid.UUID,
	apply func(*transfer.QueueEntry) (map[string]any, error),
	actor string,
) (*transfer.QueueEntry, error) {
	var entry *transfer.QueueEntry
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		e, err := s.repo.FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		meta, err := apply(e)
		if err != nil {
			return err
		}
		if err := s.repo.Update(ctx, e); err != nil {
			return err
		}
		meta["entity_type"] = string(e.EntityType)
		meta["entity_id"] = e.EntityID
		rec, err := audit.NewLogEntry(tenantID, auditEntityType, e.ID, audit.ActionUpdate, actor,
			audit.RiskLow, string(integration.PlatformAccounting), meta)
		if err != nil {
			return err
		}
		if err := s.auditRepo.Create(ctx, rec); err != nil {
			return fmt.Errorf("write audit entry: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, entry)
	return entry, nil
}

// update applies a worker-reported result without an audit record
func (s *QueueService) update(ctx context.Context, tenantID, id uuid.UUID, apply func(*transfer.QueueEntry) error) (*transfer.QueueEntry, error) {
	var entry *transfer.QueueEntry
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		e, err := s.repo.FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := apply(e); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, entry)
	return entry, nil
}

func (s *QueueService) publish(ctx context.Context, entry *transfer.QueueEntry) {
	events := entry.GetDomainEvents()
	entry.ClearDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.log(ctx).Warn("publish queue events", zap.Error(err))
	}
}

func (s *QueueService) recordOutcome(ctx context.Context, tenantID uuid.UUID, success bool) {
	if s.outcomes == nil {
		return
	}
	if err := s.outcomes.RecordIntegrationOutcome(ctx, tenantID, integration.PlatformAccounting, success); err != nil {
		s.log(ctx).Warn("record accounting breaker outcome", zap.Bool("success", success), zap.Error(err))
	}
}
