package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
	"github.com/reims/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSessionRepository implements reconciliation.SessionRepository using GORM.
// Lookups that find nothing return a nil entity, not an error.
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GormSessionRepository
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// FindByID finds a session by its ID
func (r *GormSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.ReconciliationSession, error) {
	var model models.SessionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns sessions matching the filter
func (r *GormSessionRepository) FindAll(ctx context.Context, filter shared.Filter) ([]reconciliation.ReconciliationSession, error) {
	var sessionModels []models.SessionModel
	query := r.db.WithContext(ctx).Model(&models.SessionModel{})
	query = applyListFilter(query, filter, SessionSortFields)
	if err := query.Find(&sessionModels).Error; err != nil {
		return nil, err
	}
	sessions := make([]reconciliation.ReconciliationSession, len(sessionModels))
	for i := range sessionModels {
		sessions[i] = *sessionModels[i].ToDomain()
	}
	return sessions, nil
}

// Save inserts or updates a session
func (r *GormSessionRepository) Save(ctx context.Context, session *reconciliation.ReconciliationSession) error {
	model := models.SessionModelFromDomain(session)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
}

// Delete removes a session by ID
func (r *GormSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.SessionModel{}, "id = ?", id).Error
}

// Count returns the number of sessions
func (r *GormSessionRepository) Count(ctx context.Context, _ shared.Filter) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SessionModel{}).Count(&count).Error
	return count, err
}

// FindByPropertyAndPeriod finds the session for a property and period, if any
func (r *GormSessionRepository) FindByPropertyAndPeriod(ctx context.Context, propertyID uuid.UUID, periodID string) (*reconciliation.ReconciliationSession, error) {
	var model models.SessionModel
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND period_id = ?", propertyID, periodID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive finds a session for the property and period that is currently running
func (r *GormSessionRepository) FindActive(ctx context.Context, propertyID uuid.UUID, periodID string) (*reconciliation.ReconciliationSession, error) {
	var model models.SessionModel
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND period_id = ? AND status IN ?", propertyID, periodID,
			[]reconciliation.SessionStatus{reconciliation.SessionStatusRunning, reconciliation.SessionStatusEvaluatingRules}).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// applyListFilter applies pagination and validated ordering to a list query.
func applyListFilter(query *gorm.DB, filter shared.Filter, allowed map[string]bool) *gorm.DB {
	orderBy := ValidateSortField(filter.OrderBy, allowed, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", orderBy, orderDir))

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	return query
}
