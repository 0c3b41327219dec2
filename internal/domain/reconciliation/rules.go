package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RuleStatus is the outcome of evaluating one rule version
type RuleStatus string

const (
	RuleStatusPass    RuleStatus = "PASS"
	RuleStatusFail    RuleStatus = "FAIL"
	RuleStatusSkipped RuleStatus = "SKIPPED"
)

// CalculatedRule is one immutable version of a reconciliation rule. Edits
// create a new version; history is never mutated. At evaluation time only one
// version per RuleID is active.
type CalculatedRule struct {
	shared.BaseEntity
	RuleID            string
	Version           int
	Name              string
	Formula           string
	DependsOn         []string
	ToleranceAbsolute decimal.Decimal
	TolerancePercent  decimal.Decimal
	Severity          Severity
	StatementScope    []DocumentType
	PropertyID        *uuid.UUID
	Active            bool
}

// AppliesTo reports whether the rule is in scope for the property and the
// statements present in the working set
func (r *CalculatedRule) AppliesTo(propertyID uuid.UUID, records RecordSet) bool {
	if r.PropertyID != nil && *r.PropertyID != propertyID {
		return false
	}
	for _, doc := range r.StatementScope {
		if !records.Has(doc) {
			return false
		}
	}
	return true
}

// IsCovenant reports whether the rule asserts an inequality bound rather than
// an equality tie. Covenant-style rules grade as covenant violations when
// they fail.
func (r *CalculatedRule) IsCovenant() bool {
	depth := 0
	for i := 0; i < len(r.Formula); i++ {
		switch r.Formula[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '<', '>':
			if depth == 0 {
				return true
			}
		case '=':
			if depth == 0 {
				return false
			}
		}
	}
	return false
}

// Tolerance returns the effective tolerance for the evaluated formula: the
// more permissive of the absolute and percent tolerances, the percent applied
// to the larger side's magnitude.
func (r *CalculatedRule) Tolerance(result *FormulaResult) decimal.Decimal {
	reference := decimal.Max(result.LeftValue.Abs(), result.RightValue.Abs())
	relative := reference.Mul(r.TolerancePercent).Div(decimal.NewFromInt(100))
	return decimal.Max(r.ToleranceAbsolute, relative)
}

// NewRuleVersion creates the next immutable version of a rule. The given
// version number is the predecessor's; pass 0 for a brand new rule.
func NewRuleVersion(ruleID string, priorVersion int, name, formula string) CalculatedRule {
	return CalculatedRule{
		BaseEntity: shared.NewBaseEntity(),
		RuleID:     ruleID,
		Version:    priorVersion + 1,
		Name:       name,
		Formula:    formula,
		Severity:   SeverityMedium,
		Active:     true,
	}
}

// RuleEvaluationResult is the outcome of one rule version for one session run
type RuleEvaluationResult struct {
	shared.BaseEntity
	SessionID     uuid.UUID
	Generation    int
	RuleID        string
	Version       int
	Status        RuleStatus
	ExpectedValue decimal.Decimal
	ActualValue   decimal.Decimal
	Difference    decimal.Decimal
	Message       string
}

// RuleEvaluator evaluates active rule versions against a normalized record
// set. Rules are ordered topologically by their declared dependencies;
// independent rules of the same layer evaluate concurrently. A dependency
// cycle is a configuration error confined to the affected rules: they are
// SKIPPED, the session continues.
type RuleEvaluator struct {
	timeout time.Duration
	logger  *zap.Logger
}

// DefaultRuleTimeout bounds a single rule evaluation
const DefaultRuleTimeout = 5 * time.Second

// NewRuleEvaluator creates an evaluator with the given per-rule timeout
func NewRuleEvaluator(timeout time.Duration, logger *zap.Logger) *RuleEvaluator {
	if timeout <= 0 {
		timeout = DefaultRuleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleEvaluator{timeout: timeout, logger: logger}
}

// Evaluate runs all applicable rules and returns one result per rule.
// Cancellation is cooperative: checked between topological layers, never
// mid-rule.
func (e *RuleEvaluator) Evaluate(ctx context.Context, sessionID uuid.UUID, generation int, rules []CalculatedRule, resolve FieldResolver) []RuleEvaluationResult {
	layers, cyclic := topologicalLayers(rules)

	results := make(map[string]RuleEvaluationResult, len(rules))
	var mu sync.Mutex

	// Rule outputs become fields for dependents: rule_<rule_id> resolves to
	// the dependency's actual value once it has evaluated.
	layeredResolve := func(name string) (decimal.Decimal, bool) {
		if len(name) > 5 && name[:5] == "rule_" {
			mu.Lock()
			defer mu.Unlock()
			r, ok := results[name[5:]]
			if !ok || r.Status == RuleStatusSkipped {
				return decimal.Zero, false
			}
			return r.ActualValue, true
		}
		return resolve(name)
	}

	for _, rule := range cyclic {
		results[rule.RuleID] = e.skipped(sessionID, generation, &rule,
			"CONFIGURATION_ERROR: rule participates in a dependency cycle")
	}

	cancelled := false
	for _, layer := range layers {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			for _, rule := range layer {
				results[rule.RuleID] = e.skipped(sessionID, generation, &rule, "evaluation cancelled before this batch")
			}
			continue
		}

		var wg sync.WaitGroup
		for _, rule := range layer {
			wg.Add(1)
			go func(rule CalculatedRule) {
				defer wg.Done()
				result := e.evaluateOne(ctx, sessionID, generation, &rule, layeredResolve)
				mu.Lock()
				results[rule.RuleID] = result
				mu.Unlock()
			}(rule)
		}
		wg.Wait()
	}

	ordered := make([]RuleEvaluationResult, 0, len(results))
	for _, rule := range rules {
		if r, ok := results[rule.RuleID]; ok {
			ordered = append(ordered, r)
			delete(results, rule.RuleID)
		}
	}
	return ordered
}

// evaluateOne runs a single rule bounded by the per-rule timeout. A timeout
// skips that rule alone, it does not fail the session.
func (e *RuleEvaluator) evaluateOne(ctx context.Context, sessionID uuid.UUID, generation int, rule *CalculatedRule, resolve FieldResolver) RuleEvaluationResult {
	ruleCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		result *FormulaResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := EvaluateFormula(rule.Formula, resolve)
		done <- outcome{result, err}
	}()

	select {
	case <-ruleCtx.Done():
		return e.skipped(sessionID, generation, rule, fmt.Sprintf("evaluation timed out after %s", e.timeout))
	case out := <-done:
		if out.err != nil {
			if isFieldNotFound(out.err) {
				return e.skipped(sessionID, generation, rule, out.err.Error())
			}
			e.logger.Warn("rule formula failed to evaluate",
				zap.String("rule_id", rule.RuleID),
				zap.Int("version", rule.Version),
				zap.Error(out.err),
			)
			return RuleEvaluationResult{
				BaseEntity: shared.NewBaseEntity(),
				SessionID:  sessionID,
				Generation: generation,
				RuleID:     rule.RuleID,
				Version:    rule.Version,
				Status:     RuleStatusSkipped,
				Message:    "FORMULA_EVALUATION_ERROR: " + out.err.Error(),
			}
		}

		status := RuleStatusFail
		if out.result.Holds(rule.Tolerance(out.result)) {
			status = RuleStatusPass
		}
		return RuleEvaluationResult{
			BaseEntity:    shared.NewBaseEntity(),
			SessionID:     sessionID,
			Generation:    generation,
			RuleID:        rule.RuleID,
			Version:       rule.Version,
			Status:        status,
			ExpectedValue: out.result.ExpectedValue,
			ActualValue:   out.result.ActualValue,
			Difference:    out.result.Difference,
		}
	}
}

func (e *RuleEvaluator) skipped(sessionID uuid.UUID, generation int, rule *CalculatedRule, message string) RuleEvaluationResult {
	return RuleEvaluationResult{
		BaseEntity: shared.NewBaseEntity(),
		SessionID:  sessionID,
		Generation: generation,
		RuleID:     rule.RuleID,
		Version:    rule.Version,
		Status:     RuleStatusSkipped,
		Message:    message,
	}
}

func isFieldNotFound(err error) bool {
	return errors.Is(err, ErrFieldNotFound)
}

// topologicalLayers orders rules by dependency using Kahn's algorithm and
// returns evaluation layers plus the rules caught in cycles. Dependencies on
// rules outside the given set are ignored for ordering purposes.
func topologicalLayers(rules []CalculatedRule) ([][]CalculatedRule, []CalculatedRule) {
	byID := make(map[string]CalculatedRule, len(rules))
	for _, r := range rules {
		byID[r.RuleID] = r
	}

	indegree := make(map[string]int, len(rules))
	dependents := make(map[string][]string)
	for _, r := range rules {
		indegree[r.RuleID] = 0
	}
	for _, r := range rules {
		for _, dep := range r.DependsOn {
			if _, known := byID[dep]; !known {
				continue
			}
			indegree[r.RuleID]++
			dependents[dep] = append(dependents[dep], r.RuleID)
		}
	}

	frontier := make([]string, 0, len(rules))
	for id, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Strings(frontier)

	var layers [][]CalculatedRule
	processed := 0
	for len(frontier) > 0 {
		layer := make([]CalculatedRule, 0, len(frontier))
		var next []string
		for _, id := range frontier {
			layer = append(layer, byID[id])
			processed++
			for _, dependent := range dependents[id] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Strings(next)
		layers = append(layers, layer)
		frontier = next
	}

	var cyclic []CalculatedRule
	if processed < len(rules) {
		for _, r := range rules {
			if indegree[r.RuleID] > 0 {
				cyclic = append(cyclic, r)
			}
		}
	}
	return layers, cyclic
}
