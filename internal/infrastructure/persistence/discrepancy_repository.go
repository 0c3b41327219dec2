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

// GormDiscrepancyRepository implements reconciliation.DiscrepancyRepository using GORM
type GormDiscrepancyRepository struct {
	db *gorm.DB
}

// NewGormDiscrepancyRepository creates a new GormDiscrepancyRepository
func NewGormDiscrepancyRepository(db *gorm.DB) *GormDiscrepancyRepository {
	return &GormDiscrepancyRepository{db: db}
}

// FindByID finds a discrepancy by its ID
func (r *GormDiscrepancyRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.Discrepancy, error) {
	var model models.DiscrepancyModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	discrepancy := model.ToDomain()
	return &discrepancy, nil
}

// FindAll returns discrepancies matching the filter
func (r *GormDiscrepancyRepository) FindAll(ctx context.Context, filter shared.Filter) ([]reconciliation.Discrepancy, error) {
	var discrepancyModels []models.DiscrepancyModel
	query := r.db.WithContext(ctx).Model(&models.DiscrepancyModel{})
	query = applyListFilter(query, filter, DiscrepancySortFields)
	if err := query.Find(&discrepancyModels).Error; err != nil {
		return nil, err
	}
	discrepancies := make([]reconciliation.Discrepancy, len(discrepancyModels))
	for i := range discrepancyModels {
		discrepancies[i] = discrepancyModels[i].ToDomain()
	}
	return discrepancies, nil
}

// Save inserts or updates a discrepancy
func (r *GormDiscrepancyRepository) Save(ctx context.Context, discrepancy *reconciliation.Discrepancy) error {
	model := models.DiscrepancyModelFromDomain(discrepancy)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
}

// Delete removes a discrepancy by ID
func (r *GormDiscrepancyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.DiscrepancyModel{}, "id = ?", id).Error
}

// Count returns the number of discrepancies
func (r *GormDiscrepancyRepository) Count(ctx context.Context, _ shared.Filter) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DiscrepancyModel{}).Count(&count).Error
	return count, err
}

// FindBySession returns one generation's discrepancies for a session, filtered and paginated
func (r *GormDiscrepancyRepository) FindBySession(ctx context.Context, sessionID uuid.UUID, generation int, filter reconciliation.DiscrepancyFilter) (shared.Paginated[reconciliation.Discrepancy], error) {
	query := r.db.WithContext(ctx).Model(&models.DiscrepancyModel{}).
		Where("session_id = ? AND generation = ?", sessionID, generation)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Severity != nil {
		query = query.Where("severity = ?", *filter.Severity)
	}
	if filter.OpenOnly {
		query = query.Where("status IN ?",
			[]reconciliation.DiscrepancyStatus{reconciliation.DiscrepancyStatusOpen, reconciliation.DiscrepancyStatusInvestigating})
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[reconciliation.Discrepancy]{}, err
	}

	page, pageSize := normalizePage(filter.Filter)
	var discrepancyModels []models.DiscrepancyModel
	err := applyListFilter(query, filter.Filter, DiscrepancySortFields).Find(&discrepancyModels).Error
	if err != nil {
		return shared.Paginated[reconciliation.Discrepancy]{}, err
	}
	discrepancies := make([]reconciliation.Discrepancy, len(discrepancyModels))
	for i := range discrepancyModels {
		discrepancies[i] = discrepancyModels[i].ToDomain()
	}
	return shared.NewPaginated(discrepancies, total, page, pageSize), nil
}

// SaveBatch inserts or replaces a batch of discrepancies
func (r *GormDiscrepancyRepository) SaveBatch(ctx context.Context, discrepancies []reconciliation.Discrepancy) error {
	if len(discrepancies) == 0 {
		return nil
	}
	discrepancyModels := make([]models.DiscrepancyModel, len(discrepancies))
	for i := range discrepancies {
		discrepancyModels[i] = *models.DiscrepancyModelFromDomain(&discrepancies[i])
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(discrepancyModels, 500).Error
}

// DeleteByGeneration removes every discrepancy of the session older than the given generation
func (r *GormDiscrepancyRepository) DeleteByGeneration(ctx context.Context, sessionID uuid.UUID, beforeGeneration int) error {
	return r.db.WithContext(ctx).
		Where("session_id = ? AND generation < ?", sessionID, beforeGeneration).
		Delete(&models.DiscrepancyModel{}).Error
}
