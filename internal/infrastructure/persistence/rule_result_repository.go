package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRuleResultRepository implements reconciliation.RuleResultRepository using GORM
type GormRuleResultRepository struct {
	db *gorm.DB
}

// NewGormRuleResultRepository creates a new GormRuleResultRepository
func NewGormRuleResultRepository(db *gorm.DB) *GormRuleResultRepository {
	return &GormRuleResultRepository{db: db}
}

// FindBySession returns one generation's rule outcomes for a session
func (r *GormRuleResultRepository) FindBySession(ctx context.Context, sessionID uuid.UUID, generation int) ([]reconciliation.RuleEvaluationResult, error) {
	var resultModels []models.RuleResultModel
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND generation = ?", sessionID, generation).
		Order("rule_id ASC").
		Find(&resultModels).Error
	if err != nil {
		return nil, err
	}
	results := make([]reconciliation.RuleEvaluationResult, len(resultModels))
	for i := range resultModels {
		results[i] = resultModels[i].ToDomain()
	}
	return results, nil
}

// SaveBatch inserts or replaces a batch of rule outcomes
func (r *GormRuleResultRepository) SaveBatch(ctx context.Context, results []reconciliation.RuleEvaluationResult) error {
	if len(results) == 0 {
		return nil
	}
	resultModels := make([]models.RuleResultModel, len(results))
	for i := range results {
		resultModels[i] = *models.RuleResultModelFromDomain(&results[i])
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(resultModels, 500).Error
}

// DeleteByGeneration removes every rule outcome of the session older than the given generation
func (r *GormRuleResultRepository) DeleteByGeneration(ctx context.Context, sessionID uuid.UUID, beforeGeneration int) error {
	return r.db.WithContext(ctx).
		Where("session_id = ? AND generation < ?", sessionID, beforeGeneration).
		Delete(&models.RuleResultModel{}).Error
}
