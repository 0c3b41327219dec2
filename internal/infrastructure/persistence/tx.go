package persistence

import (
	"context"

	"github.com/reims/backend/internal/domain/reconciliation"
	"gorm.io/gorm"
)

// txRepositories binds the run-output repositories to one gorm transaction.
type txRepositories struct {
	tx *gorm.DB
}

func (t *txRepositories) Sessions() reconciliation.SessionRepository {
	return NewGormSessionRepository(t.tx)
}

func (t *txRepositories) Matches() reconciliation.MatchRepository {
	return NewGormMatchRepository(t.tx)
}

func (t *txRepositories) Discrepancies() reconciliation.DiscrepancyRepository {
	return NewGormDiscrepancyRepository(t.tx)
}

func (t *txRepositories) RuleResults() reconciliation.RuleResultRepository {
	return NewGormRuleResultRepository(t.tx)
}

func (t *txRepositories) HealthScores() reconciliation.HealthScoreRepository {
	return NewGormHealthScoreRepository(t.tx)
}

// GormTransactionManager implements reconciliation.TransactionManager. A run's
// generation swap (delete old rows, insert the new generation, update the
// session) commits atomically or not at all.
type GormTransactionManager struct {
	db *gorm.DB
}

// NewGormTransactionManager creates a new GormTransactionManager
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// InTransaction runs fn with all repository writes bound to one transaction
func (m *GormTransactionManager) InTransaction(ctx context.Context, fn func(repos reconciliation.TxRepositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txRepositories{tx: tx})
	})
}
