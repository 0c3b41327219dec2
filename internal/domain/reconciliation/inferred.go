package reconciliation

import (
	"context"
	"sort"
	"sync"

	"github.com/reims/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// Inferred matching parameters. The confidence ceiling keeps inferred matches
// below the tier 0/1 thresholds: an inferred match always needs human review.
const (
	InferredConfidenceCap  = 0.69
	inferredConfidenceBase = 0.40
	inferredConfidenceSpan = 0.29
)

// InferredMatchingStrategy is the lowest-confidence heuristic fallback. It
// correlates records left unmatched by the higher-priority strategies by
// ordinal position within their statements, pairing the n-th largest
// unclaimed source amount with the n-th largest unclaimed target amount.
type InferredMatchingStrategy struct {
	strategy.BaseStrategy
}

// NewInferredMatchingStrategy creates the inferred strategy
func NewInferredMatchingStrategy() *InferredMatchingStrategy {
	return &InferredMatchingStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"inferred_matching",
			strategy.StrategyTypeMatching,
			"Correlates leftover records by ordinal amount position, confidence capped at 0.69",
		),
	}
}

// MatchType returns the match type
func (s *InferredMatchingStrategy) MatchType() MatchType {
	return MatchTypeInferred
}

// Match runs the ordinal correlation over every cross-statement pair
// concurrently
func (s *InferredMatchingStrategy) Match(ctx context.Context, in *StrategyInput) (*StrategyOutput, error) {
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

// matchPair pairs leftover records ordinally by descending amount magnitude.
// Only pairs whose amounts are within one relative order of magnitude are
// accepted; confidence grows with amount closeness but never exceeds the cap.
func (s *InferredMatchingStrategy) matchPair(in *StrategyInput, pair documentPair) *StrategyOutput {
	out := &StrategyOutput{}
	sources := unclaimedSorted(in.Records[pair.Source], in.Claimed)
	targets := unclaimedSorted(in.Records[pair.Target], in.Claimed)

	n := len(sources)
	if len(targets) < n {
		n = len(targets)
	}
	for i := 0; i < n; i++ {
		source, target := sources[i], targets[i]
		larger := decimal.Max(source.Amount.Abs(), target.Amount.Abs())
		if !larger.IsPositive() {
			continue
		}
		difference := source.Amount.Sub(target.Amount).Abs()
		relative, _ := difference.Div(larger).Float64()
		if relative > 1 {
			continue
		}
		confidence := inferredConfidenceBase + inferredConfidenceSpan*(1-relative)
		if confidence > InferredConfidenceCap {
			confidence = InferredConfidenceCap
		}
		out.Matches = append(out.Matches, NewMatch(in.SessionID, in.Generation, source, target, MatchTypeInferred, confidence))
	}
	return out
}

// unclaimedSorted returns pointers to the unclaimed records sorted by
// descending amount magnitude, ties broken by account code for determinism
func unclaimedSorted(records []FinancialRecord, claimed ClaimSet) []*FinancialRecord {
	leftover := make([]*FinancialRecord, 0, len(records))
	for i := range records {
		if !claimed.Claimed(records[i].ID) {
			leftover = append(leftover, &records[i])
		}
	}
	sort.Slice(leftover, func(i, j int) bool {
		ai, aj := leftover[i].Amount.Abs(), leftover[j].Amount.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return leftover[i].AccountCode < leftover[j].AccountCode
	})
	return leftover
}
