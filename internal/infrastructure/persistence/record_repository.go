package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
	"github.com/reims/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRecordRepository implements reconciliation.RecordRepository using GORM
type GormRecordRepository struct {
	db *gorm.DB
}

// NewGormRecordRepository creates a new GormRecordRepository
func NewGormRecordRepository(db *gorm.DB) *GormRecordRepository {
	return &GormRecordRepository{db: db}
}

// FindByID finds a financial record by its ID
func (r *GormRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.FinancialRecord, error) {
	var model models.FinancialRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	record := model.ToDomain()
	return &record, nil
}

// FindAll returns financial records matching the filter
func (r *GormRecordRepository) FindAll(ctx context.Context, filter shared.Filter) ([]reconciliation.FinancialRecord, error) {
	var recordModels []models.FinancialRecordModel
	query := r.db.WithContext(ctx).Model(&models.FinancialRecordModel{})
	query = applyListFilter(query, filter, RecordSortFields)
	if err := query.Find(&recordModels).Error; err != nil {
		return nil, err
	}
	records := make([]reconciliation.FinancialRecord, len(recordModels))
	for i := range recordModels {
		records[i] = recordModels[i].ToDomain()
	}
	return records, nil
}

// Save inserts or updates a financial record
func (r *GormRecordRepository) Save(ctx context.Context, record *reconciliation.FinancialRecord) error {
	model := models.FinancialRecordModelFromDomain(record)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
}

// Delete removes a financial record by ID
func (r *GormRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.FinancialRecordModel{}, "id = ?", id).Error
}

// Count returns the number of financial records
func (r *GormRecordRepository) Count(ctx context.Context, _ shared.Filter) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FinancialRecordModel{}).Count(&count).Error
	return count, err
}

// FindByPropertyAndPeriod loads every record for a property and period, grouped
// by document type
func (r *GormRecordRepository) FindByPropertyAndPeriod(ctx context.Context, propertyID uuid.UUID, periodID string) (reconciliation.RecordSet, error) {
	var recordModels []models.FinancialRecordModel
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND period_id = ?", propertyID, periodID).
		Find(&recordModels).Error
	if err != nil {
		return nil, err
	}
	records := make([]reconciliation.FinancialRecord, len(recordModels))
	for i := range recordModels {
		records[i] = recordModels[i].ToDomain()
	}
	return reconciliation.NewRecordSet(records), nil
}

// SaveBatch inserts or replaces a batch of financial records
func (r *GormRecordRepository) SaveBatch(ctx context.Context, records []reconciliation.FinancialRecord) error {
	if len(records) == 0 {
		return nil
	}
	recordModels := make([]models.FinancialRecordModel, len(records))
	for i := range records {
		recordModels[i] = *models.FinancialRecordModelFromDomain(&records[i])
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(recordModels, 500).Error
}
