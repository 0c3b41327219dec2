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

// GormRuleRepository implements reconciliation.RuleRepository using GORM
type GormRuleRepository struct {
	db *gorm.DB
}

// NewGormRuleRepository creates a new GormRuleRepository
func NewGormRuleRepository(db *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: db}
}

// FindByID finds a rule version by its entity ID
func (r *GormRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.CalculatedRule, error) {
	var model models.CalculatedRuleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rule := model.ToDomain()
	return &rule, nil
}

// FindAll returns rule versions matching the filter
func (r *GormRuleRepository) FindAll(ctx context.Context, filter shared.Filter) ([]reconciliation.CalculatedRule, error) {
	var ruleModels []models.CalculatedRuleModel
	query := r.db.WithContext(ctx).Model(&models.CalculatedRuleModel{})
	query = applyListFilter(query, filter, RuleSortFields)
	if err := query.Find(&ruleModels).Error; err != nil {
		return nil, err
	}
	rules := make([]reconciliation.CalculatedRule, len(ruleModels))
	for i := range ruleModels {
		rules[i] = ruleModels[i].ToDomain()
	}
	return rules, nil
}

// Save inserts or updates a rule version
func (r *GormRuleRepository) Save(ctx context.Context, rule *reconciliation.CalculatedRule) error {
	model := models.CalculatedRuleModelFromDomain(rule)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
}

// Delete removes a rule version by entity ID
func (r *GormRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CalculatedRuleModel{}, "id = ?", id).Error
}

// Count returns the number of rule versions
func (r *GormRuleRepository) Count(ctx context.Context, _ shared.Filter) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CalculatedRuleModel{}).Count(&count).Error
	return count, err
}

// FindActive returns the active rule versions in scope for a property.
// Global rules (nil property) and rules pinned to the property both apply.
func (r *GormRuleRepository) FindActive(ctx context.Context, propertyID uuid.UUID) ([]reconciliation.CalculatedRule, error) {
	var ruleModels []models.CalculatedRuleModel
	err := r.db.WithContext(ctx).
		Where("active = ? AND (property_id IS NULL OR property_id = ?)", true, propertyID).
		Order("rule_id ASC").
		Find(&ruleModels).Error
	if err != nil {
		return nil, err
	}
	rules := make([]reconciliation.CalculatedRule, len(ruleModels))
	for i := range ruleModels {
		rules[i] = ruleModels[i].ToDomain()
	}
	return rules, nil
}

// FindVersions returns the version history of a rule, newest first
func (r *GormRuleRepository) FindVersions(ctx context.Context, ruleID string) ([]reconciliation.CalculatedRule, error) {
	var ruleModels []models.CalculatedRuleModel
	err := r.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("version DESC").
		Find(&ruleModels).Error
	if err != nil {
		return nil, err
	}
	rules := make([]reconciliation.CalculatedRule, len(ruleModels))
	for i := range ruleModels {
		rules[i] = ruleModels[i].ToDomain()
	}
	return rules, nil
}
