package reconciliation

import (
	"context"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/shared"
)

// SessionRepository persists reconciliation sessions
type SessionRepository interface {
	shared.Repository[ReconciliationSession]
	FindByPropertyAndPeriod(ctx context.Context, propertyID uuid.UUID, periodID string) (*ReconciliationSession, error)
	FindActive(ctx context.Context, propertyID uuid.UUID, periodID string) (*ReconciliationSession, error)
}

// RecordRepository persists ingested financial records
type RecordRepository interface {
	shared.Repository[FinancialRecord]
	FindByPropertyAndPeriod(ctx context.Context, propertyID uuid.UUID, periodID string) (RecordSet, error)
	SaveBatch(ctx context.Context, records []FinancialRecord) error
}

// MatchFilter narrows match listings
type MatchFilter struct {
	shared.Filter
	Tier          *Tier
	Status        *MatchStatus
	MatchType     *MatchType
	MinConfidence *float64
}

// MatchRepository persists matches produced by an engine run
type MatchRepository interface {
	shared.Repository[Match]
	FindBySession(ctx context.Context, sessionID uuid.UUID, generation int, filter MatchFilter) (shared.Paginated[Match], error)
	SaveBatch(ctx context.Context, matches []Match) error
	DeleteByGeneration(ctx context.Context, sessionID uuid.UUID, beforeGeneration int) error
}

// DiscrepancyFilter narrows discrepancy listings
type DiscrepancyFilter struct {
	shared.Filter
	Type     *DiscrepancyType
	Severity *Severity
	OpenOnly bool
}

// DiscrepancyRepository persists discrepancies produced by an engine run
type DiscrepancyRepository interface {
	shared.Repository[Discrepancy]
	FindBySession(ctx context.Context, sessionID uuid.UUID, generation int, filter DiscrepancyFilter) (shared.Paginated[Discrepancy], error)
	SaveBatch(ctx context.Context, discrepancies []Discrepancy) error
	DeleteByGeneration(ctx context.Context, sessionID uuid.UUID, beforeGeneration int) error
}

// RuleRepository persists calculated-rule versions
type RuleRepository interface {
	shared.Repository[CalculatedRule]
	// FindActive returns the latest active version of each rule applicable
	// to the property.
	FindActive(ctx context.Context, propertyID uuid.UUID) ([]CalculatedRule, error)
	FindVersions(ctx context.Context, ruleID string) ([]CalculatedRule, error)
}

// RuleResultRepository persists rule evaluation outcomes
type RuleResultRepository interface {
	FindBySession(ctx context.Context, sessionID uuid.UUID, generation int) ([]RuleEvaluationResult, error)
	SaveBatch(ctx context.Context, results []RuleEvaluationResult) error
	DeleteByGeneration(ctx context.Context, sessionID uuid.UUID, beforeGeneration int) error
}

// MaterialityRepository loads materiality configurations
type MaterialityRepository interface {
	FindForProperty(ctx context.Context, propertyID uuid.UUID) ([]MaterialityConfig, error)
	Save(ctx context.Context, config *MaterialityConfig) error
}

// HealthScoreRepository persists aggregated health scores
type HealthScoreRepository interface {
	FindBySession(ctx context.Context, sessionID uuid.UUID, persona Persona) (*HealthScore, error)
	// History returns prior-period scores for the persona, oldest first.
	History(ctx context.Context, propertyID uuid.UUID, persona Persona, before string, limit int) ([]HealthScore, error)
	SaveBatch(ctx context.Context, scores []HealthScore) error
	DeleteByGeneration(ctx context.Context, sessionID uuid.UUID, beforeGeneration int) error
}

// TxRepositories exposes the repositories bound to one transaction
type TxRepositories interface {
	Sessions() SessionRepository
	Matches() MatchRepository
	Discrepancies() DiscrepancyRepository
	RuleResults() RuleResultRepository
	HealthScores() HealthScoreRepository
}

// TransactionManager runs a function with all writes in a single transaction
type TransactionManager interface {
	InTransaction(ctx context.Context, fn func(repos TxRepositories) error) error
}
