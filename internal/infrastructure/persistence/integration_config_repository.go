package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormIntegrationConfigRepository implements integration.ConfigRepository using GORM
type GormIntegrationConfigRepository struct {
	db *gorm.DB
}

// NewGormIntegrationConfigRepository creates a new GormIntegrationConfigRepository
func NewGormIntegrationConfigRepository(db *gorm.DB) *GormIntegrationConfigRepository {
	return &GormIntegrationConfigRepository{db: db}
}

// FindByKey returns the active configuration for key, or nil
func (r *GormIntegrationConfigRepository) FindByKey(ctx context.Context, key integration.ConfigKey) (*integration.IntegrationConfig, error) {
	var model models.IntegrationConfigModel
	err := conn(ctx, r.db).
		Where("tenant_id = ? AND platform = ? AND config_type = ? AND environment = ? AND is_active = ?",
			key.TenantID, string(key.Platform), string(key.ConfigType), string(key.Environment), true).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns the primary active configuration of a platform.
// Without a primary the most recently updated active configuration is used.
func (r *GormIntegrationConfigRepository) FindActive(ctx context.Context, tenantID uuid.UUID, platform integration.Platform) (*integration.IntegrationConfig, error) {
	var model models.IntegrationConfigModel
	err := conn(ctx, r.db).
		Where("tenant_id = ? AND platform = ? AND is_active = ?", tenantID, string(platform), true).
		Order("is_primary DESC").
		Order("updated_at DESC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds a configuration by ID within a tenant
func (r *GormIntegrationConfigRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.IntegrationConfig, error) {
	var model models.IntegrationConfigModel
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

// Create inserts a configuration
func (r *GormIntegrationConfigRepository) Create(ctx context.Context, cfg *integration.IntegrationConfig) error {
	model := models.IntegrationConfigModelFromDomain(cfg)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update saves the configuration if its version is still current
func (r *GormIntegrationConfigRepository) Update(ctx context.Context, cfg *integration.IntegrationConfig) error {
	model := models.IntegrationConfigModelFromDomain(cfg)
	next := cfg.Version + 1
	cols := model.MutableColumns()
	cols["version"] = next

	db := conn(ctx, r.db)
	result := db.Model(&models.IntegrationConfigModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", cfg.ID, cfg.TenantID, cfg.Version).
		Updates(cols)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return versionConflict(db, &models.IntegrationConfigModel{}, "id = ? AND tenant_id = ?", cfg.ID, cfg.TenantID)
	}
	cfg.Version = next
	return nil
}

// ClearPrimary demotes every other primary configuration of the platform
func (r *GormIntegrationConfigRepository) ClearPrimary(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, exceptID uuid.UUID) error {
	return conn(ctx, r.db).Model(&models.IntegrationConfigModel{}).
		Where("tenant_id = ? AND platform = ? AND is_primary = ? AND id <> ?", tenantID, string(platform), true, exceptID).
		Updates(map[string]any{
			"is_primary": false,
			"version":    gorm.Expr("version + 1"),
		}).Error
}

// ListActiveTenants returns the distinct tenants with an active configuration for platform
func (r *GormIntegrationConfigRepository) ListActiveTenants(ctx context.Context, platform integration.Platform) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	err := conn(ctx, r.db).Model(&models.IntegrationConfigModel{}).
		Distinct("tenant_id").
		Where("platform = ? AND is_active = ?", string(platform), true).
		Order("tenant_id").
		Pluck("tenant_id", &tenantIDs).Error
	if err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

var _ integration.ConfigRepository = (*GormIntegrationConfigRepository)(nil)

// GormWebhookConfigRepository implements integration.WebhookRepository using GORM
type GormWebhookConfigRepository struct {
	db *gorm.DB
}

// NewGormWebhookConfigRepository creates a new GormWebhookConfigRepository
func NewGormWebhookConfigRepository(db *gorm.DB) *GormWebhookConfigRepository {
	return &GormWebhookConfigRepository{db: db}
}

// FindByID finds a webhook by ID within a tenant
func (r *GormWebhookConfigRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.WebhookConfig, error) {
	var model models.WebhookConfigModel
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

// FindByPlatform returns the tenant's webhook for platform, or nil
func (r *GormWebhookConfigRepository) FindByPlatform(ctx context.Context, tenantID uuid.UUID, platform integration.Platform) (*integration.WebhookConfig, error) {
	var model models.WebhookConfigModel
	err := conn(ctx, r.db).
		Where("tenant_id = ? AND platform = ?", tenantID, string(platform)).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByTenant lists every webhook of a tenant ordered by platform
func (r *GormWebhookConfigRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*integration.WebhookConfig, error) {
	var rows []models.WebhookConfigModel
	if err := conn(ctx, r.db).
		Where("tenant_id = ?", tenantID).
		Order("platform ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	hooks := make([]*integration.WebhookConfig, 0, len(rows))
	for i := range rows {
		hooks = append(hooks, rows[i].ToDomain())
	}
	return hooks, nil
}

// Create inserts a webhook configuration
func (r *GormWebhookConfigRepository) Create(ctx context.Context, w *integration.WebhookConfig) error {
	if err := conn(ctx, r.db).Create(models.WebhookConfigModelFromDomain(w)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update saves the webhook if its version is still current
func (r *GormWebhookConfigRepository) Update(ctx context.Context, w *integration.WebhookConfig) error {
	model := models.WebhookConfigModelFromDomain(w)
	next := w.Version + 1
	cols := model.MutableColumns()
	cols["version"] = next

	db := conn(ctx, r.db)
	result := db.Model(&models.WebhookConfigModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", w.ID, w.TenantID, w.Version).
		Updates(cols)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return versionConflict(db, &models.WebhookConfigModel{}, "id = ? AND tenant_id = ?", w.ID, w.TenantID)
	}
	w.Version = next
	return nil
}

var _ integration.WebhookRepository = (*GormWebhookConfigRepository)(nil)
