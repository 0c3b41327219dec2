package reconciliation

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// exactTolerance is the cent-level tolerance for an exact match
var exactTolerance = decimal.NewFromFloat(0.01)

// ExactMatchingStrategy matches records whose canonical account is identical
// across two statements and whose amounts agree to the cent. Confidence is
// always 1.0.
type ExactMatchingStrategy struct {
	strategy.BaseStrategy
}

// NewExactMatchingStrategy creates the exact strategy
func NewExactMatchingStrategy() *ExactMatchingStrategy {
	return &ExactMatchingStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"exact_matching",
			strategy.StrategyTypeMatching,
			"Matches identical canonical accounts with amounts equal within $0.01",
		),
	}
}

// MatchType returns the match type
func (s *ExactMatchingStrategy) MatchType() MatchType {
	return MatchTypeExact
}

// Match runs the exact comparison over every cross-statement pair. Pairs are
// independent read-only units, so they run concurrently; per-pair outputs are
// merged only after all workers finish.
func (s *ExactMatchingStrategy) Match(ctx context.Context, in *StrategyInput) (*StrategyOutput, error) {
	pairs := crossStatementPairs(in.Records)
	outputs := make([]*StrategyOutput, len(pairs))

	var wg sync.WaitGroup
	for i, pair := range pairs {
		wg.Add(1)
		go func(i int, pair documentPair) {
			defer wg.Done()
			outputs[i] = s.matchPair(in, pair)
		}(i, pair)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return mergeOutputs(outputs), nil
}

// matchPair matches one document-type pair. Each source record pairs with at
// most one target record.
func (s *ExactMatchingStrategy) matchPair(in *StrategyInput, pair documentPair) *StrategyOutput {
	out := &StrategyOutput{}
	taken := make(map[uuid.UUID]bool)

	for i := range in.Records[pair.Source] {
		source := &in.Records[pair.Source][i]
		if !source.IsMapped() || in.Claimed.Claimed(source.ID) {
			continue
		}
		for j := range in.Records[pair.Target] {
			target := &in.Records[pair.Target][j]
			if !target.IsMapped() || in.Claimed.Claimed(target.ID) || taken[target.ID] {
				continue
			}
			if source.CanonicalAccountID != target.CanonicalAccountID {
				continue
			}
			if source.Amount.Sub(target.Amount).Abs().GreaterThan(exactTolerance) {
				continue
			}
			out.Matches = append(out.Matches, NewMatch(in.SessionID, in.Generation, source, target, MatchTypeExact, 1.0))
			taken[target.ID] = true
			break
		}
	}
	return out
}

// mergeOutputs concatenates per-worker outputs in order, keeping the combined
// result deterministic
func mergeOutputs(outputs []*StrategyOutput) *StrategyOutput {
	merged := &StrategyOutput{}
	for _, out := range outputs {
		if out == nil {
			continue
		}
		merged.Matches = append(merged.Matches, out.Matches...)
		merged.Discrepancies = append(merged.Discrepancies, out.Discrepancies...)
	}
	return merged
}
