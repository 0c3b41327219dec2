package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RuleService manages calculated-rule versions and materiality
// configurations. Rule edits never mutate history: every change appends a new
// version and deactivates the predecessor.
type RuleService struct {
	rules       reconciliation.RuleRepository
	materiality reconciliation.MaterialityRepository
}

// NewRuleService creates a RuleService
func NewRuleService(rules reconciliation.RuleRepository, materiality reconciliation.MaterialityRepository) *RuleService {
	return &RuleService{rules: rules, materiality: materiality}
}

// RuleResponse represents one rule version in API responses
type RuleResponse struct {
	ID                uuid.UUID       `json:"id"`
	RuleID            string          `json:"rule_id"`
	Version           int             `json:"version"`
	Name              string          `json:"name"`
	Formula           string          `json:"formula"`
	DependsOn         []string        `json:"depends_on,omitempty"`
	ToleranceAbsolute decimal.Decimal `json:"tolerance_absolute"`
	TolerancePercent  decimal.Decimal `json:"tolerance_percent"`
	Severity          string          `json:"severity"`
	StatementScope    []string        `json:"statement_scope,omitempty"`
	PropertyID        *uuid.UUID      `json:"property_id,omitempty"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
}

// CreateRuleRequest represents a request to create a rule or a new version of
// an existing rule
type CreateRuleRequest struct {
	RuleID            string          `json:"rule_id" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	Formula           string          `json:"formula" binding:"required"`
	DependsOn         []string        `json:"depends_on"`
	ToleranceAbsolute decimal.Decimal `json:"tolerance_absolute"`
	TolerancePercent  decimal.Decimal `json:"tolerance_percent"`
	Severity          string          `json:"severity"`
	StatementScope    []string        `json:"statement_scope"`
	PropertyID        *uuid.UUID      `json:"property_id"`
}

// MaterialityConfigRequest represents a request to set a materiality threshold
type MaterialityConfigRequest struct {
	Scope                string          `json:"scope" binding:"required"`
	PropertyID           *uuid.UUID      `json:"property_id"`
	StatementType        string          `json:"statement_type"`
	AccountID            string          `json:"account_id"`
	AbsoluteThreshold    decimal.Decimal `json:"absolute_threshold"`
	RelativeThresholdPct decimal.Decimal `json:"relative_threshold_pct"`
	RiskClass            string          `json:"risk_class"`
}

// CreateRule creates a rule, or the next version when the rule ID already
// exists. The formula is validated against the grammar before anything is
// stored; field references are intentionally not validated here, they depend
// on the record set at evaluation time.
func (s *RuleService) CreateRule(ctx context.Context, req CreateRuleRequest) (*RuleResponse, error) {
	if err := validateFormula(req.Formula); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	for _, dep := range req.DependsOn {
		if dep == req.RuleID {
			return nil, shared.NewDomainError("INVALID_INPUT", "A rule cannot depend on itself")
		}
	}

	priorVersion := 0
	versions, err := s.rules.FindVersions(ctx, req.RuleID)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].Version > priorVersion {
			priorVersion = versions[i].Version
		}
		if versions[i].Active {
			versions[i].Active = false
			if err := s.rules.Save(ctx, &versions[i]); err != nil {
				return nil, err
			}
		}
	}

	rule := reconciliation.NewRuleVersion(req.RuleID, priorVersion, req.Name, req.Formula)
	rule.DependsOn = req.DependsOn
	rule.ToleranceAbsolute = req.ToleranceAbsolute
	rule.TolerancePercent = req.TolerancePercent
	rule.PropertyID = req.PropertyID
	if req.Severity != "" {
		severity := reconciliation.Severity(req.Severity)
		if !severity.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Unknown severity "+req.Severity)
		}
		rule.Severity = severity
	}
	for _, scope := range req.StatementScope {
		doc := reconciliation.DocumentType(scope)
		if !doc.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Unknown document type "+scope)
		}
		rule.StatementScope = append(rule.StatementScope, doc)
	}

	if err := s.rules.Save(ctx, &rule); err != nil {
		return nil, err
	}
	return toRuleResponse(&rule), nil
}

// GetRuleVersions returns the full version history of a rule, newest first
func (s *RuleService) GetRuleVersions(ctx context.Context, ruleID string) ([]RuleResponse, error) {
	versions, err := s.rules.FindVersions(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, shared.NewDomainError("NOT_FOUND", "Rule not found")
	}
	out := make([]RuleResponse, len(versions))
	for i := range versions {
		out[i] = *toRuleResponse(&versions[i])
	}
	return out, nil
}

// ListActiveRules returns the active rule versions in scope for a property
func (s *RuleService) ListActiveRules(ctx context.Context, propertyID uuid.UUID) ([]RuleResponse, error) {
	active, err := s.rules.FindActive(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	out := make([]RuleResponse, len(active))
	for i := range active {
		out[i] = *toRuleResponse(&active[i])
	}
	return out, nil
}

// DeactivateRule retires a rule without deleting its history
func (s *RuleService) DeactivateRule(ctx context.Context, ruleID string) error {
	versions, err := s.rules.FindVersions(ctx, ruleID)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return shared.NewDomainError("NOT_FOUND", "Rule not found")
	}
	for i := range versions {
		if versions[i].Active {
			versions[i].Active = false
			if err := s.rules.Save(ctx, &versions[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetMateriality stores a materiality threshold at one scope
func (s *RuleService) SetMateriality(ctx context.Context, req MaterialityConfigRequest) (*reconciliation.MaterialityConfig, error) {
	scope := reconciliation.MaterialityScope(req.Scope)
	if !scope.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown materiality scope "+req.Scope)
	}
	if req.AbsoluteThreshold.IsNegative() || req.RelativeThresholdPct.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Thresholds must not be negative")
	}

	config := reconciliation.MaterialityConfig{
		ID:                   uuid.New(),
		Scope:                scope,
		AbsoluteThreshold:    req.AbsoluteThreshold,
		RelativeThresholdPct: req.RelativeThresholdPct,
	}
	switch scope {
	case reconciliation.MaterialityScopeProperty:
		if req.PropertyID == nil {
			return nil, shared.NewDomainError("INVALID_INPUT", "Property scope requires property_id")
		}
		config.PropertyID = *req.PropertyID
	case reconciliation.MaterialityScopeStatement:
		doc := reconciliation.DocumentType(req.StatementType)
		if !doc.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Statement scope requires a valid statement_type")
		}
		config.StatementType = doc
	case reconciliation.MaterialityScopeAccount:
		if req.AccountID == "" {
			return nil, shared.NewDomainError("INVALID_INPUT", "Account scope requires account_id")
		}
		config.AccountID = req.AccountID
	}
	if req.RiskClass != "" {
		risk := reconciliation.RiskClass(req.RiskClass)
		if !risk.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Unknown risk class "+req.RiskClass)
		}
		config.RiskClass = risk
	}

	if err := s.materiality.Save(ctx, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// validateFormula parses the formula against an empty record set. Grammar
// errors surface; unresolved fields are expected and accepted.
func validateFormula(formula string) error {
	probe := func(string) (decimal.Decimal, bool) { return decimal.NewFromInt(1), true }
	if _, err := reconciliation.EvaluateFormula(formula, probe); err != nil {
		return fmt.Errorf("invalid formula: %w", err)
	}
	return nil
}

func toRuleResponse(rule *reconciliation.CalculatedRule) *RuleResponse {
	scope := make([]string, len(rule.StatementScope))
	for i, doc := range rule.StatementScope {
		scope[i] = doc.String()
	}
	return &RuleResponse{
		ID:                rule.ID,
		RuleID:            rule.RuleID,
		Version:           rule.Version,
		Name:              rule.Name,
		Formula:           rule.Formula,
		DependsOn:         rule.DependsOn,
		ToleranceAbsolute: rule.ToleranceAbsolute,
		TolerancePercent:  rule.TolerancePercent,
		Severity:          string(rule.Severity),
		StatementScope:    scope,
		PropertyID:        rule.PropertyID,
		Active:            rule.Active,
		CreatedAt:         rule.CreatedAt,
	}
}
