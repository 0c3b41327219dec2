package reconciliation

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/shared"
)

// Persona identifies a health-score audience with its own component weighting
type Persona string

const (
	PersonaController   Persona = "controller"
	PersonaAssetManager Persona = "asset_manager"
	PersonaLender       Persona = "lender"
)

// IsValid checks if the persona is known
func (p Persona) IsValid() bool {
	switch p {
	case PersonaController, PersonaAssetManager, PersonaLender:
		return true
	}
	return false
}

// Health score component names
const (
	ComponentApproval    = "approval_score"
	ComponentConfidence  = "confidence_score"
	ComponentDiscrepancy = "discrepancy_penalty"
	ComponentTrend       = "trend_component"
	ComponentVolatility  = "volatility_component"
)

// Blocked-close rule names
const (
	BlockOpenCriticalDiscrepancy = "open_critical_discrepancy"
	BlockOpenCovenantViolation   = "open_covenant_violation"
	BlockFailedCriticalRule      = "failed_critical_rule"
)

// HealthScoreConfig is a persona's component weighting and close blockers
type HealthScoreConfig struct {
	Persona           Persona
	Weights           map[string]float64
	BlockedCloseRules []string
}

// DefaultHealthScoreConfig returns the built-in config for a persona.
// Unknown personas fall back to the controller weighting.
func DefaultHealthScoreConfig(persona Persona) HealthScoreConfig {
	switch persona {
	case PersonaAssetManager:
		return HealthScoreConfig{
			Persona: PersonaAssetManager,
			Weights: map[string]float64{
				ComponentApproval:    0.30,
				ComponentConfidence:  0.25,
				ComponentDiscrepancy: 0.15,
				ComponentTrend:       0.20,
				ComponentVolatility:  0.10,
			},
			BlockedCloseRules: []string{BlockOpenCriticalDiscrepancy},
		}
	case PersonaLender:
		return HealthScoreConfig{
			Persona: PersonaLender,
			Weights: map[string]float64{
				ComponentApproval:    0.25,
				ComponentConfidence:  0.20,
				ComponentDiscrepancy: 0.35,
				ComponentTrend:       0.10,
				ComponentVolatility:  0.10,
			},
			BlockedCloseRules: []string{BlockOpenCriticalDiscrepancy, BlockOpenCovenantViolation, BlockFailedCriticalRule},
		}
	default:
		return HealthScoreConfig{
			Persona: PersonaController,
			Weights: map[string]float64{
				ComponentApproval:    0.35,
				ComponentConfidence:  0.30,
				ComponentDiscrepancy: 0.25,
				ComponentTrend:       0.05,
				ComponentVolatility:  0.05,
			},
			BlockedCloseRules: []string{BlockOpenCriticalDiscrepancy, BlockOpenCovenantViolation},
		}
	}
}

// HealthScore is the aggregated score for one session run. Blocked reports
// that period close is disallowed regardless of the numeric score.
type HealthScore struct {
	shared.BaseEntity
	SessionID      uuid.UUID
	PropertyID     uuid.UUID
	PeriodID       string
	Generation     int
	Persona        Persona
	Score          float64
	Breakdown      map[string]float64
	Blocked        bool
	BlockedReasons []string
}

// HealthInputs carries everything the aggregator scores over
type HealthInputs struct {
	Matches       []Match
	Discrepancies []Discrepancy
	RuleResults   []RuleEvaluationResult
	// PriorScores are the scores of preceding periods, oldest first,
	// feeding the trend and volatility components.
	PriorScores []float64
}

// Discrepancy penalty weights per severity
var severityPenalty = map[Severity]float64{
	SeverityCritical: 15,
	SeverityHigh:     8,
	SeverityMedium:   4,
	SeverityLow:      1,
}

// HealthScoreAggregator combines matching, tiering, and rule outcomes into a
// single bounded score per persona
type HealthScoreAggregator struct {
	config HealthScoreConfig
}

// NewHealthScoreAggregator creates an aggregator for the given config
func NewHealthScoreAggregator(config HealthScoreConfig) *HealthScoreAggregator {
	if len(config.Weights) == 0 {
		config = DefaultHealthScoreConfig(config.Persona)
	}
	return &HealthScoreAggregator{config: config}
}

// Score computes the weighted health score, always clamped to [0, 100]
func (a *HealthScoreAggregator) Score(session *ReconciliationSession, in HealthInputs) HealthScore {
	breakdown := map[string]float64{
		ComponentApproval:    approvalScore(in.Matches),
		ComponentConfidence:  confidenceScore(in.Matches),
		ComponentDiscrepancy: discrepancyPenalty(in),
		ComponentTrend:       0,
		ComponentVolatility:  0,
	}

	// The trend compares the pre-trend weighted score with the prior
	// period's; volatility penalizes a noisy score history.
	base := a.config.Weights[ComponentApproval]*breakdown[ComponentApproval] +
		a.config.Weights[ComponentConfidence]*breakdown[ComponentConfidence] +
		a.config.Weights[ComponentDiscrepancy]*breakdown[ComponentDiscrepancy]

	if n := len(in.PriorScores); n > 0 {
		breakdown[ComponentTrend] = base - in.PriorScores[n-1]
		breakdown[ComponentVolatility] = -scoreVolatility(in.PriorScores)
	}

	score := base +
		a.config.Weights[ComponentTrend]*breakdown[ComponentTrend] +
		a.config.Weights[ComponentVolatility]*breakdown[ComponentVolatility]
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	blocked, reasons := a.evaluateBlockers(in)
	return HealthScore{
		BaseEntity:     shared.NewBaseEntity(),
		SessionID:      session.ID,
		PropertyID:     session.PropertyID,
		PeriodID:       session.PeriodID,
		Generation:     session.Generation,
		Persona:        a.config.Persona,
		Score:          score,
		Breakdown:      breakdown,
		Blocked:        blocked,
		BlockedReasons: reasons,
	}
}

// evaluateBlockers checks the persona's blocked-close rules against the run
func (a *HealthScoreAggregator) evaluateBlockers(in HealthInputs) (bool, []string) {
	var reasons []string
	for _, rule := range a.config.BlockedCloseRules {
		switch rule {
		case BlockOpenCriticalDiscrepancy:
			for _, d := range in.Discrepancies {
				if d.Severity == SeverityCritical && d.Status.IsOpen() {
					reasons = append(reasons, fmt.Sprintf("%s: %s", rule, d.Description))
					break
				}
			}
		case BlockOpenCovenantViolation:
			for _, d := range in.Discrepancies {
				if d.Type == DiscrepancyTypeCovenantViolation && d.Status.IsOpen() {
					reasons = append(reasons, fmt.Sprintf("%s: %s", rule, d.Description))
					break
				}
			}
		case BlockFailedCriticalRule:
			for _, r := range in.RuleResults {
				if r.Status == RuleStatusFail {
					reasons = append(reasons, fmt.Sprintf("%s: rule %s v%d failed", rule, r.RuleID, r.Version))
					break
				}
			}
		}
	}
	return len(reasons) > 0, reasons
}

// approvalScore is the approved fraction of matches on a 0-100 scale. A run
// with no matches scores zero: there is nothing to approve.
func approvalScore(matches []Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	approved := 0
	for _, m := range matches {
		if m.Status == MatchStatusApproved {
			approved++
		}
	}
	return 100 * float64(approved) / float64(len(matches))
}

// confidenceScore is the mean match confidence on a 0-100 scale
func confidenceScore(matches []Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	sum := 0.0
	for _, m := range matches {
		sum += m.Confidence
	}
	return 100 * sum / float64(len(matches))
}

// discrepancyPenalty is a negative component weighted by severity and, when a
// discrepancy links back to a match, the match's tier
func discrepancyPenalty(in HealthInputs) float64 {
	tierByMatch := make(map[uuid.UUID]Tier, len(in.Matches))
	for _, m := range in.Matches {
		tierByMatch[m.ID] = m.Tier
	}

	penalty := 0.0
	for _, d := range in.Discrepancies {
		if !d.Status.IsOpen() {
			continue
		}
		weight := severityPenalty[d.Severity]
		tier := TierEscalate
		if d.MatchID != nil {
			if t, ok := tierByMatch[*d.MatchID]; ok {
				tier = t
			}
		}
		penalty += weight * (1 + 0.25*float64(tier))
	}
	return -penalty
}

// scoreVolatility is the population standard deviation of the score history
func scoreVolatility(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	variance := 0.0
	for _, s := range scores {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(len(scores))
	return math.Sqrt(variance)
}
