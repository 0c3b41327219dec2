package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMaterialityRepository implements reconciliation.MaterialityRepository using GORM
type GormMaterialityRepository struct {
	db *gorm.DB
}

// NewGormMaterialityRepository creates a new GormMaterialityRepository
func NewGormMaterialityRepository(db *gorm.DB) *GormMaterialityRepository {
	return &GormMaterialityRepository{db: db}
}

// FindForProperty returns every materiality config applicable to a property:
// global, statement and account scoped configs plus the ones pinned to it.
func (r *GormMaterialityRepository) FindForProperty(ctx context.Context, propertyID uuid.UUID) ([]reconciliation.MaterialityConfig, error) {
	var configModels []models.MaterialityConfigModel
	err := r.db.WithContext(ctx).
		Where("scope <> ? OR property_id = ?", reconciliation.MaterialityScopeProperty, propertyID).
		Find(&configModels).Error
	if err != nil {
		return nil, err
	}
	configs := make([]reconciliation.MaterialityConfig, len(configModels))
	for i := range configModels {
		configs[i] = configModels[i].ToDomain()
	}
	return configs, nil
}

// Save inserts or updates a materiality config
func (r *GormMaterialityRepository) Save(ctx context.Context, config *reconciliation.MaterialityConfig) error {
	model := models.MaterialityConfigModelFromDomain(config)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
}
