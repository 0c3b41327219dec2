package reconciliation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngineResult is the merged output of a matching run
type EngineResult struct {
	Matches       []Match
	Discrepancies []Discrepancy
	StrategiesRun []MatchType
	TotalRecords  int
	Unmatched     int
}

// MatchingEngine runs the four matching strategies in strict priority order:
// exact, fuzzy, calculated, inferred. Once a record is matched, lower-priority
// strategies do not re-match it. Records left unmatched by every enabled
// strategy become missing_correspondence discrepancies.
type MatchingEngine struct {
	exact      MatchingStrategy
	fuzzy      MatchingStrategy
	calculated MatchingStrategy
	inferred   MatchingStrategy
	logger     *zap.Logger
}

// NewMatchingEngine creates an engine with the four fixed strategies
func NewMatchingEngine(logger *zap.Logger) *MatchingEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchingEngine{
		exact:      NewExactMatchingStrategy(),
		fuzzy:      NewFuzzyMatchingStrategy(),
		calculated: NewCalculatedMatchingStrategy(),
		inferred:   NewInferredMatchingStrategy(),
		logger:     logger,
	}
}

// Run executes the enabled strategies against the working set. Cancellation
// is cooperative: the context is checked between strategy batches, in-flight
// comparisons are never interrupted mid-computation.
func (e *MatchingEngine) Run(ctx context.Context, in *StrategyInput, flags StrategyFlags) (*EngineResult, error) {
	if in.Claimed == nil {
		in.Claimed = NewClaimSet()
	}
	result := &EngineResult{TotalRecords: in.Records.Count()}

	for _, enabled := range []struct {
		on       bool
		strategy MatchingStrategy
	}{
		{flags.UseExact, e.exact},
		{flags.UseFuzzy, e.fuzzy},
		{flags.UseCalculated, e.calculated},
		{flags.UseInferred, e.inferred},
	} {
		if !enabled.on {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := enabled.strategy.Match(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("%s strategy: %w", enabled.strategy.Name(), err)
		}
		// Calculated matches tie formula legs rather than claiming records
		// exclusively, but a matched record still must not be re-matched by
		// the inferred fallback.
		in.Claimed.ClaimMatches(out.Matches)
		result.Matches = append(result.Matches, out.Matches...)
		result.Discrepancies = append(result.Discrepancies, out.Discrepancies...)
		result.StrategiesRun = append(result.StrategiesRun, enabled.strategy.MatchType())

		e.logger.Debug("matching strategy completed",
			zap.String("strategy", enabled.strategy.Name()),
			zap.Int("matches", len(out.Matches)),
			zap.Int("discrepancies", len(out.Discrepancies)),
		)
	}

	result.Discrepancies = append(result.Discrepancies, e.missingCorrespondence(in, result)...)
	return result, nil
}

// missingCorrespondence flags every record no strategy matched
func (e *MatchingEngine) missingCorrespondence(in *StrategyInput, result *EngineResult) []Discrepancy {
	var discrepancies []Discrepancy
	for _, doc := range in.Records.DocumentTypes() {
		for i := range in.Records[doc] {
			record := &in.Records[doc][i]
			if in.Claimed.Claimed(record.ID) {
				continue
			}
			result.Unmatched++
			materiality := in.Materiality.Resolve(in.PropertyID, doc, record.CanonicalAccountID)
			d := NewDiscrepancy(
				in.SessionID, in.Generation,
				DiscrepancyTypeMissingCorrespondence,
				SeverityForRisk(materiality.RiskClass),
				fmt.Sprintf("No corresponding record found for %s %q (%s)", doc, record.AccountName, record.Amount.StringFixed(2)),
			)
			d.RecordIDs = []uuid.UUID{record.ID}
			d.Amount = record.Amount
			discrepancies = append(discrepancies, d)
		}
	}
	return discrepancies
}
