package reconciliation

import (
	"context"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/shared/strategy"
)

// StrategyFlags selects which matching strategies and whether rule evaluation
// run for a session
type StrategyFlags struct {
	UseExact      bool `json:"use_exact"`
	UseFuzzy      bool `json:"use_fuzzy"`
	UseCalculated bool `json:"use_calculated"`
	UseInferred   bool `json:"use_inferred"`
	UseRules      bool `json:"use_rules"`
}

// AllStrategies enables every strategy and rule evaluation
func AllStrategies() StrategyFlags {
	return StrategyFlags{
		UseExact:      true,
		UseFuzzy:      true,
		UseCalculated: true,
		UseInferred:   true,
		UseRules:      true,
	}
}

// ClaimSet tracks records already matched by a higher-priority strategy.
// Lower-priority strategies skip claimed records.
type ClaimSet map[uuid.UUID]MatchType

// NewClaimSet creates an empty claim set
func NewClaimSet() ClaimSet {
	return make(ClaimSet)
}

// Claimed returns true if the record is already matched
func (c ClaimSet) Claimed(recordID uuid.UUID) bool {
	_, ok := c[recordID]
	return ok
}

// ClaimMatches claims both records of every match
func (c ClaimSet) ClaimMatches(matches []Match) {
	for _, m := range matches {
		c[m.SourceRecordID] = m.MatchType
		c[m.TargetRecordID] = m.MatchType
	}
}

// StrategyInput is the read-only working set a strategy matches over.
// Strategies write no shared state; each returns its own output lists which
// the engine merges after all workers complete.
type StrategyInput struct {
	SessionID   uuid.UUID
	Generation  int
	PropertyID  uuid.UUID
	PeriodID    string
	Records     RecordSet
	Prior       RecordSet
	Materiality *MaterialityResolver
	Mapper      *AccountMapper
	Claimed     ClaimSet
}

// StrategyOutput is the disjoint result list produced by one strategy
type StrategyOutput struct {
	Matches       []Match
	Discrepancies []Discrepancy
}

// MatchingStrategy is one of the four fixed matching strategies. Strategies
// run in strict priority order: exact, fuzzy, calculated, inferred.
type MatchingStrategy interface {
	strategy.Strategy
	// MatchType returns the match type this strategy produces
	MatchType() MatchType
	// Match produces matches and discrepancies over the unclaimed records
	Match(ctx context.Context, in *StrategyInput) (*StrategyOutput, error)
}

// documentPair is an ordered cross-statement pair to match between
type documentPair struct {
	Source DocumentType
	Target DocumentType
}

// crossStatementPairs enumerates the ordered document-type pairs present in
// the record set. Each pair is a unit of parallel work.
func crossStatementPairs(records RecordSet) []documentPair {
	types := records.DocumentTypes()
	pairs := make([]documentPair, 0, len(types)*(len(types)-1)/2)
	for i := 0; i < len(types); i++ {
		for j := i + 1; j < len(types); j++ {
			pairs = append(pairs, documentPair{Source: types[i], Target: types[j]})
		}
	}
	return pairs
}
