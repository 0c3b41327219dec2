package reconciliation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier is the remediation tier of a match or discrepancy. Lower tiers need
// less human review.
type Tier int

const (
	TierAutoClose   Tier = 0 // auto-close, no review needed
	TierAutoSuggest Tier = 1 // auto-suggest a resolution for one-click review
	TierRoute       Tier = 2 // route to an analyst queue
	TierEscalate    Tier = 3 // escalate to a senior reviewer
)

// String returns a human-readable tier label
func (t Tier) String() string {
	switch t {
	case TierAutoClose:
		return "auto_close"
	case TierAutoSuggest:
		return "auto_suggest"
	case TierRoute:
		return "route"
	case TierEscalate:
		return "escalate"
	}
	return fmt.Sprintf("tier_%d", int(t))
}

// Confidence boundaries for tier classification
const (
	tierAutoCloseConfidence   = 0.98
	tierAutoSuggestConfidence = 0.90
	tierEscalateConfidence    = 0.70
)

// TierInput carries everything the classifier needs. Classification is a pure
// function of this input: identical inputs always yield identical output.
type TierInput struct {
	Confidence           float64
	AmountDifference     decimal.Decimal
	MaterialityThreshold decimal.Decimal
	RiskClass            RiskClass
	SourceAmount         decimal.Decimal
	TargetAmount         decimal.Decimal
}

// TierResult is the classification outcome. SuggestedResolution is only set
// for tier 1.
type TierResult struct {
	Tier                Tier
	SuggestedResolution string
}

// ClassifyTier assigns a remediation tier:
//
//	tier 0: confidence >= 0.98 and |difference| within materiality, non-critical risk
//	tier 1: 0.90 <= confidence < 0.98 and the difference is a recognized fixable pattern
//	tier 2: 0.70 <= confidence < 0.90, or tier 1 criteria not met
//	tier 3: confidence < 0.70, or critical risk regardless of confidence
//
// Critical-risk accounts never auto-close.
func ClassifyTier(in TierInput) TierResult {
	if in.RiskClass == RiskClassCritical {
		return TierResult{Tier: TierEscalate}
	}
	if in.Confidence < tierEscalateConfidence {
		return TierResult{Tier: TierEscalate}
	}
	if in.Confidence >= tierAutoCloseConfidence &&
		in.AmountDifference.Abs().LessThanOrEqual(in.MaterialityThreshold) {
		return TierResult{Tier: TierAutoClose}
	}
	if in.Confidence >= tierAutoSuggestConfidence && in.Confidence < tierAutoCloseConfidence {
		if suggestion, ok := fixablePattern(in); ok {
			return TierResult{Tier: TierAutoSuggest, SuggestedResolution: suggestion}
		}
	}
	return TierResult{Tier: TierRoute}
}

// Fixable pattern bounds
var (
	roundingCeiling   = decimal.NewFromInt(1)       // at most $1.00
	roundingRelative  = decimal.NewFromFloat(0.005) // and under 0.5% of the amount
	unitMismatchSlack = decimal.NewFromFloat(0.01)  // 1% slack on the unit ratio
	unitRatios        = []int64{100, 1000, 12}      // cents, thousands, annual/monthly
)

// fixablePattern recognizes differences a reviewer can fix mechanically:
// pure rounding, a sign flip, or a unit mismatch.
func fixablePattern(in TierInput) (string, bool) {
	diff := in.AmountDifference.Abs()
	if diff.IsZero() {
		return "", false
	}

	// Pure rounding: tiny in absolute and relative terms.
	larger := decimal.Max(in.SourceAmount.Abs(), in.TargetAmount.Abs())
	if diff.LessThanOrEqual(roundingCeiling) && larger.IsPositive() &&
		diff.LessThanOrEqual(larger.Mul(roundingRelative)) {
		return "Adjust for rounding difference of " + diff.StringFixed(2), true
	}

	// Sign flip: amounts cancel out within the materiality threshold.
	if in.SourceAmount.Add(in.TargetAmount).Abs().LessThanOrEqual(in.MaterialityThreshold) &&
		in.SourceAmount.Sign() != 0 && in.SourceAmount.Sign() == -in.TargetAmount.Sign() {
		return "Flip the sign of the target amount", true
	}

	// Unit mismatch: one amount is a known multiple of the other.
	if in.SourceAmount.IsZero() || in.TargetAmount.IsZero() {
		return "", false
	}
	ratio := in.SourceAmount.Abs().Div(in.TargetAmount.Abs())
	for _, r := range unitRatios {
		factor := decimal.NewFromInt(r)
		if within(ratio, factor, unitMismatchSlack) {
			return "Rescale the target amount by " + factor.String(), true
		}
		if within(ratio, decimal.NewFromInt(1).Div(factor), unitMismatchSlack) {
			return "Rescale the source amount by " + factor.String(), true
		}
	}
	return "", false
}

// within reports whether value is inside target*(1 +/- slack)
func within(value, target, slack decimal.Decimal) bool {
	return value.Sub(target).Abs().LessThanOrEqual(target.Mul(slack))
}
