package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/audit"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements audit.Repository using GORM.
// Entries are append-only apart from the review columns.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Create appends an audit entry
func (r *GormAuditLogRepository) Create(ctx context.Context, entry *audit.LogEntry) error {
	return conn(ctx, r.db).Create(models.ConfigurationAuditLogModelFromDomain(entry)).Error
}

// FindByID finds an audit entry by ID within a tenant
func (r *GormAuditLogRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*audit.LogEntry, error) {
	var model models.ConfigurationAuditLogModel
	if err := conn(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns a newest-first page of entries and the total match count
func (r *GormAuditLogRepository) List(ctx context.Context, tenantID uuid.UUID, filter audit.Filter) ([]*audit.LogEntry, int64, error) {
	filter = filter.Normalize()
	query := r.applyFilter(conn(ctx, r.db).Model(&models.ConfigurationAuditLogModel{}).
		Where("tenant_id = ?", tenantID), filter).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ConfigurationAuditLogModel
	if err := query.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toLogEntries(rows), total, nil
}

func (r *GormAuditLogRepository) applyFilter(query *gorm.DB, filter audit.Filter) *gorm.DB {
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", string(filter.Action))
	}
	if filter.PerformedBy != "" {
		query = query.Where("performed_by = ?", filter.PerformedBy)
	}
	if filter.RiskLevel != "" {
		query = query.Where("risk_level = ?", string(filter.RiskLevel))
	}
	if filter.Platform != "" {
		query = query.Where("platform = ?", filter.Platform)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}

// ListPendingReview returns entries awaiting review, oldest first
func (r *GormAuditLogRepository) ListPendingReview(ctx context.Context, tenantID uuid.UUID, limit int) ([]*audit.LogEntry, error) {
	if limit <= 0 || limit > audit.MaxListLimit {
		limit = audit.DefaultListLimit
	}
	var rows []models.ConfigurationAuditLogModel
	if err := conn(ctx, r.db).
		Where("tenant_id = ? AND requires_review = ? AND reviewed_at IS NULL", tenantID, true).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toLogEntries(rows), nil
}

// SaveReview records the reviewer on an entry that has not been reviewed yet
func (r *GormAuditLogRepository) SaveReview(ctx context.Context, entry *audit.LogEntry) error {
	db := conn(ctx, r.db)
	result := db.Model(&models.ConfigurationAuditLogModel{}).
		Where("tenant_id = ? AND id = ? AND reviewed_at IS NULL", entry.TenantID, entry.ID).
		Updates(map[string]any{
			"reviewed_at": entry.ReviewedAt,
			"reviewed_by": entry.ReviewedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.ConfigurationAuditLogModel{}).
			Where("tenant_id = ? AND id = ?", entry.TenantID, entry.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.NewInvalidStateError("audit entry has already been reviewed")
	}
	return nil
}

func toLogEntries(rows []models.ConfigurationAuditLogModel) []*audit.LogEntry {
	entries := make([]*audit.LogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToDomain())
	}
	return entries
}

var _ audit.Repository = (*GormAuditLogRepository)(nil)
