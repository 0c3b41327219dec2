package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormHealthScoreRepository implements reconciliation.HealthScoreRepository using GORM
type GormHealthScoreRepository struct {
	db *gorm.DB
}

// NewGormHealthScoreRepository creates a new GormHealthScoreRepository
func NewGormHealthScoreRepository(db *gorm.DB) *GormHealthScoreRepository {
	return &GormHealthScoreRepository{db: db}
}

// FindBySession returns the stored score for a session and persona, if any
func (r *GormHealthScoreRepository) FindBySession(ctx context.Context, sessionID uuid.UUID, persona reconciliation.Persona) (*reconciliation.HealthScore, error) {
	var model models.HealthScoreModel
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND persona = ?", sessionID, persona).
		Order("generation DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	score := model.ToDomain()
	return &score, nil
}

// History returns up to limit prior-period scores for the persona, oldest first.
// Period IDs sort lexically because of the fixed YYYY-MM format.
func (r *GormHealthScoreRepository) History(ctx context.Context, propertyID uuid.UUID, persona reconciliation.Persona, before string, limit int) ([]reconciliation.HealthScore, error) {
	var scoreModels []models.HealthScoreModel
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND persona = ? AND period_id < ?", propertyID, persona, before).
		Order("period_id DESC").
		Limit(limit).
		Find(&scoreModels).Error
	if err != nil {
		return nil, err
	}
	scores := make([]reconciliation.HealthScore, len(scoreModels))
	for i := range scoreModels {
		scores[len(scoreModels)-1-i] = scoreModels[i].ToDomain()
	}
	return scores, nil
}

// SaveBatch inserts or replaces a batch of health scores
func (r *GormHealthScoreRepository) SaveBatch(ctx context.Context, scores []reconciliation.HealthScore) error {
	if len(scores) == 0 {
		return nil
	}
	scoreModels := make([]models.HealthScoreModel, len(scores))
	for i := range scores {
		scoreModels[i] = *models.HealthScoreModelFromDomain(&scores[i])
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(scoreModels, 500).Error
}

// DeleteByGeneration removes every score of the session older than the given generation
func (r *GormHealthScoreRepository) DeleteByGeneration(ctx context.Context, sessionID uuid.UUID, beforeGeneration int) error {
	return r.db.WithContext(ctx).
		Where("session_id = ? AND generation < ?", sessionID, beforeGeneration).
		Delete(&models.HealthScoreModel{}).Error
}
