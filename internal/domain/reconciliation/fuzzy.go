package reconciliation

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// Fuzzy matching parameters
const (
	fuzzySimilarityFloor = 0.80
	fuzzyNameWeight      = 0.60
	fuzzyAmountWeight    = 0.40
)

// FuzzyMatchingStrategy matches records by account-name similarity with the
// amount difference inside the resolved materiality threshold. Confidence is a
// weighted blend of name similarity (60%) and amount closeness (40%).
type FuzzyMatchingStrategy struct {
	strategy.BaseStrategy
}

// NewFuzzyMatchingStrategy creates the fuzzy strategy
func NewFuzzyMatchingStrategy() *FuzzyMatchingStrategy {
	return &FuzzyMatchingStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fuzzy_matching",
			strategy.StrategyTypeMatching,
			"Matches by account-name similarity >= 0.80 with amounts inside materiality",
		),
	}
}

// MatchType returns the match type
func (s *FuzzyMatchingStrategy) MatchType() MatchType {
	return MatchTypeFuzzy
}

// Match runs fuzzy comparison over every cross-statement pair concurrently
func (s *FuzzyMatchingStrategy) Match(ctx context.Context, in *StrategyInput) (*StrategyOutput, error) {
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

// matchPair picks, for each unclaimed source record, the best-scoring
// unclaimed target above the similarity floor and inside materiality
func (s *FuzzyMatchingStrategy) matchPair(in *StrategyInput, pair documentPair) *StrategyOutput {
	out := &StrategyOutput{}
	taken := make(map[uuid.UUID]bool)

	for i := range in.Records[pair.Source] {
		source := &in.Records[pair.Source][i]
		if in.Claimed.Claimed(source.ID) {
			continue
		}

		materiality := in.Materiality.Resolve(in.PropertyID, source.DocumentType, source.CanonicalAccountID)
		threshold := materiality.ThresholdFor(source.Amount)

		var best *FinancialRecord
		bestConfidence := 0.0
		for j := range in.Records[pair.Target] {
			target := &in.Records[pair.Target][j]
			if in.Claimed.Claimed(target.ID) || taken[target.ID] {
				continue
			}
			similarity := nameSimilarity(source.AccountName, target.AccountName)
			if similarity < fuzzySimilarityFloor {
				continue
			}
			difference := source.Amount.Sub(target.Amount).Abs()
			if difference.GreaterThan(threshold) {
				continue
			}
			confidence := fuzzyNameWeight*similarity + fuzzyAmountWeight*amountCloseness(difference, threshold)
			if confidence > bestConfidence {
				bestConfidence = confidence
				best = target
			}
		}
		if best != nil {
			out.Matches = append(out.Matches, NewMatch(in.SessionID, in.Generation, source, best, MatchTypeFuzzy, bestConfidence))
			taken[best.ID] = true
		}
	}
	return out
}

// amountCloseness maps an absolute difference to [0, 1]: 1 at zero difference,
// 0 at the threshold
func amountCloseness(difference, threshold decimal.Decimal) float64 {
	if !threshold.IsPositive() {
		if difference.IsZero() {
			return 1
		}
		return 0
	}
	closeness, _ := decimal.NewFromInt(1).Sub(difference.Div(threshold)).Float64()
	if closeness < 0 {
		return 0
	}
	if closeness > 1 {
		return 1
	}
	return closeness
}

// nameSimilarity blends normalized token overlap with an edit-distance ratio,
// taking whichever view scores the names as more alike
func nameSimilarity(a, b string) float64 {
	na, nb := normalizeTokens(a), normalizeTokens(b)
	overlap := tokenOverlap(na, nb)
	ratio := editDistanceRatio(strings.Join(na, " "), strings.Join(nb, " "))
	if overlap > ratio {
		return overlap
	}
	return ratio
}

// normalizeTokens lowercases and splits an account name into word tokens
func normalizeTokens(name string) []string {
	return strings.Fields(strings.ToLower(strings.TrimSpace(name)))
}

// tokenOverlap is the Jaccard coefficient over the token sets
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, token := range a {
		setA[token] = true
	}
	setB := make(map[string]bool, len(b))
	for _, token := range b {
		setB[token] = true
	}
	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// editDistanceRatio is 1 - levenshtein(a, b)/max(len(a), len(b))
func editDistanceRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance with a two-row table
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
