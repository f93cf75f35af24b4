package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
	"github.com/ledgerbridge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// activeEntityPredicate must stay identical to the partial index predicate of
// idx_transfer_queue_active_entity so ON CONFLICT can infer the index.
const activeEntityPredicate = "status = 'PENDING_REVIEW' OR status = 'APPROVED'"

// GormTransferQueueRepository implements transfer.QueueRepository using GORM
type GormTransferQueueRepository struct {
	db *gorm.DB
}

// NewGormTransferQueueRepository creates a new GormTransferQueueRepository
func NewGormTransferQueueRepository(db *gorm.DB) *GormTransferQueueRepository {
	return &GormTransferQueueRepository{db: db}
}

// Create inserts a queue entry. The insert is a no-op against the partial
// unique index when an active entry for the same entity already exists.
func (r *GormTransferQueueRepository) Create(ctx context.Context, entry *transfer.QueueEntry) error {
	model, err := models.TransferQueueEntryModelFromDomain(entry)
	if err != nil {
		return err
	}

	result := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "entity_type"}, {Name: "entity_id"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: activeEntityPredicate},
		}},
		DoNothing: true,
	}).Create(model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return transfer.ErrDuplicateActiveEntry
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return transfer.ErrDuplicateActiveEntry
	}
	return nil
}

// Update saves the entry's mutable columns if its version is still current
func (r *GormTransferQueueRepository) Update(ctx context.Context, entry *transfer.QueueEntry) error {
	model, err := models.TransferQueueEntryModelFromDomain(entry)
	if err != nil {
		return err
	}
	next := entry.Version + 1
	cols := model.MutableColumns()
	cols["version"] = next

	db := conn(ctx, r.db)
	result := db.Model(&models.TransferQueueEntryModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", entry.ID, entry.TenantID, entry.Version).
		Updates(cols)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return transfer.ErrDuplicateActiveEntry
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return versionConflict(db, &models.TransferQueueEntryModel{}, "id = ? AND tenant_id = ?", entry.ID, entry.TenantID)
	}
	entry.Version = next
	return nil
}

// FindByID finds a queue entry by ID within a tenant
func (r *GormTransferQueueRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*transfer.QueueEntry, error) {
	var model models.TransferQueueEntryModel
	if err := conn(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindActiveByEntity returns the in-flight entry for an entity, or nil
func (r *GormTransferQueueRepository) FindActiveByEntity(ctx context.Context, tenantID uuid.UUID, entityType transfer.EntityType, entityID string) (*transfer.QueueEntry, error) {
	var model models.TransferQueueEntryModel
	err := conn(ctx, r.db).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, string(entityType), entityID).
		Where("status IN ?", statusStrings(transfer.ActiveStatuses())).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindPending lists PENDING_REVIEW entries in FIFO order
func (r *GormTransferQueueRepository) FindPending(ctx context.Context, tenantID uuid.UUID, filter transfer.PendingFilter) ([]*transfer.QueueEntry, error) {
	query := conn(ctx, r.db).
		Where("tenant_id = ? AND status = ?", tenantID, string(transfer.StatusPendingReview))
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", string(*filter.EntityType))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []models.TransferQueueEntryModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toQueueEntries(rows)
}

// FindDueApproved lists APPROVED entries ready for the transfer engine
func (r *GormTransferQueueRepository) FindDueApproved(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]*transfer.QueueEntry, error) {
	query := conn(ctx, r.db).
		Where("tenant_id = ? AND status = ?", tenantID, string(transfer.StatusApproved)).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.TransferQueueEntryModel
	if err := query.Order("approved_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toQueueEntries(rows)
}

type groupCount struct {
	GroupKey string
	Count    int64
}

// Stats aggregates the tenant's queue by status and entity type
func (r *GormTransferQueueRepository) Stats(ctx context.Context, tenantID uuid.UUID) (*transfer.QueueStats, error) {
	db := conn(ctx, r.db)
	stats := &transfer.QueueStats{
		ByStatus:     make(map[transfer.Status]int64),
		ByEntityType: make(map[transfer.EntityType]int64),
	}

	var byStatus []groupCount
	if err := db.Model(&models.TransferQueueEntryModel{}).
		Select("status AS group_key, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, g := range byStatus {
		stats.ByStatus[transfer.Status(g.GroupKey)] = g.Count
	}

	var byType []groupCount
	if err := db.Model(&models.TransferQueueEntryModel{}).
		Select("entity_type AS group_key, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("entity_type").
		Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, g := range byType {
		stats.ByEntityType[transfer.EntityType(g.GroupKey)] = g.Count
	}

	var oldest models.TransferQueueEntryModel
	err := db.Select("created_at").
		Where("tenant_id = ? AND status = ?", tenantID, string(transfer.StatusPendingReview)).
		Order("created_at ASC").
		Take(&oldest).Error
	switch {
	case err == nil:
		at := oldest.CreatedAt
		stats.OldestPendingAt = &at
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return stats, nil
}

// DeleteFinishedBefore purges TRANSFERRED and REJECTED entries
func (r *GormTransferQueueRepository) DeleteFinishedBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error) {
	query := conn(ctx, r.db).
		Where("status IN ? AND updated_at < ?",
			[]string{string(transfer.StatusTransferred), string(transfer.StatusRejected)}, cutoff)
	if tenantID != uuid.Nil {
		query = query.Where("tenant_id = ?", tenantID)
	}
	result := query.Delete(&models.TransferQueueEntryModel{})
	return result.RowsAffected, result.Error
}

func toQueueEntries(rows []models.TransferQueueEntryModel) ([]*transfer.QueueEntry, error) {
	entries := make([]*transfer.QueueEntry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func statusStrings(statuses []transfer.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

var _ transfer.QueueRepository = (*GormTransferQueueRepository)(nil)
