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

// GormMatchRepository implements reconciliation.MatchRepository using GORM
type GormMatchRepository struct {
	db *gorm.DB
}

// NewGormMatchRepository creates a new GormMatchRepository
func NewGormMatchRepository(db *gorm.DB) *GormMatchRepository {
	return &GormMatchRepository{db: db}
}

// FindByID finds a match by its ID
func (r *GormMatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.Match, error) {
	var model models.MatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	match := model.ToDomain()
	return &match, nil
}

// FindAll returns matches matching the filter
func (r *GormMatchRepository) FindAll(ctx context.Context, filter shared.Filter) ([]reconciliation.Match, error) {
	var matchModels []models.MatchModel
	query := r.db.WithContext(ctx).Model(&models.MatchModel{})
	query = applyListFilter(query, filter, MatchSortFields)
	if err := query.Find(&matchModels).Error; err != nil {
		return nil, err
	}
	matches := make([]reconciliation.Match, len(matchModels))
	for i := range matchModels {
		matches[i] = matchModels[i].ToDomain()
	}
	return matches, nil
}

// Save inserts or updates a match
func (r *GormMatchRepository) Save(ctx context.Context, match *reconciliation.Match) error {
	model := models.MatchModelFromDomain(match)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
}

// Delete removes a match by ID
func (r *GormMatchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.MatchModel{}, "id = ?", id).Error
}

// Count returns the number of matches
func (r *GormMatchRepository) Count(ctx context.Context, _ shared.Filter) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.MatchModel{}).Count(&count).Error
	return count, err
}

// FindBySession returns one generation's matches for a session, filtered and paginated
func (r *GormMatchRepository) FindBySession(ctx context.Context, sessionID uuid.UUID, generation int, filter reconciliation.MatchFilter) (shared.Paginated[reconciliation.Match], error) {
	query := r.db.WithContext(ctx).Model(&models.MatchModel{}).
		Where("session_id = ? AND generation = ?", sessionID, generation)
	if filter.Tier != nil {
		query = query.Where("tier = ?", *filter.Tier)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.MatchType != nil {
		query = query.Where("match_type = ?", *filter.MatchType)
	}
	if filter.MinConfidence != nil {
		query = query.Where("confidence >= ?", *filter.MinConfidence)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[reconciliation.Match]{}, err
	}

	page, pageSize := normalizePage(filter.Filter)
	var matchModels []models.MatchModel
	err := applyListFilter(query, filter.Filter, MatchSortFields).Find(&matchModels).Error
	if err != nil {
		return shared.Paginated[reconciliation.Match]{}, err
	}
	matches := make([]reconciliation.Match, len(matchModels))
	for i := range matchModels {
		matches[i] = matchModels[i].ToDomain()
	}
	return shared.NewPaginated(matches, total, page, pageSize), nil
}

// SaveBatch inserts or replaces a batch of matches
func (r *GormMatchRepository) SaveBatch(ctx context.Context, matches []reconciliation.Match) error {
	if len(matches) == 0 {
		return nil
	}
	matchModels := make([]models.MatchModel, len(matches))
	for i := range matches {
		matchModels[i] = *models.MatchModelFromDomain(&matches[i])
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(matchModels, 500).Error
}

// DeleteByGeneration removes every match of the session older than the given generation
func (r *GormMatchRepository) DeleteByGeneration(ctx context.Context, sessionID uuid.UUID, beforeGeneration int) error {
	return r.db.WithContext(ctx).
		Where("session_id = ? AND generation < ?", sessionID, beforeGeneration).
		Delete(&models.MatchModel{}).Error
}

// normalizePage clamps filter paging values to sane defaults.
func normalizePage(filter shared.Filter) (page, pageSize int) {
	page = filter.Page
	if page < 1 {
		page = 1
	}
	pageSize = filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}
