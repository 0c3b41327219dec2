package reconciliation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaterialityScope identifies the level a materiality config applies to
type MaterialityScope string

const (
	MaterialityScopeGlobal    MaterialityScope = "global"
	MaterialityScopeProperty  MaterialityScope = "property"
	MaterialityScopeStatement MaterialityScope = "statement"
	MaterialityScopeAccount   MaterialityScope = "account"
)

// IsValid checks if the scope is valid
func (s MaterialityScope) IsValid() bool {
	switch s {
	case MaterialityScopeGlobal, MaterialityScopeProperty, MaterialityScopeStatement, MaterialityScopeAccount:
		return true
	}
	return false
}

// MaterialityConfig defines a numeric tolerance threshold at one scope.
// PropertyID, StatementType and AccountID narrow the scope and are only
// consulted for the matching scope level.
type MaterialityConfig struct {
	ID                   uuid.UUID
	Scope                MaterialityScope
	PropertyID           uuid.UUID
	StatementType        DocumentType
	AccountID            string
	AbsoluteThreshold    decimal.Decimal
	RelativeThresholdPct decimal.Decimal
	RiskClass            RiskClass
}

// ResolvedMateriality is the effective tolerance for one account in context
type ResolvedMateriality struct {
	AbsoluteThreshold    decimal.Decimal
	RelativeThresholdPct decimal.Decimal
	RiskClass            RiskClass
	Source               MaterialityScope
	Defaulted            bool
}

// ThresholdFor returns the effective absolute tolerance for a reference
// amount: the larger of the absolute threshold and the relative threshold
// applied to the amount's magnitude.
func (r ResolvedMateriality) ThresholdFor(amount decimal.Decimal) decimal.Decimal {
	relative := amount.Abs().Mul(r.RelativeThresholdPct).Div(decimal.NewFromInt(100))
	if relative.GreaterThan(r.AbsoluteThreshold) {
		return relative
	}
	return r.AbsoluteThreshold
}

// DefaultMateriality returns the hardcoded global fallback used when no
// configuration exists at any scope
func DefaultMateriality() ResolvedMateriality {
	return ResolvedMateriality{
		AbsoluteThreshold:    decimal.NewFromFloat(0.01),
		RelativeThresholdPct: decimal.NewFromInt(1),
		RiskClass:            RiskClassMedium,
		Source:               MaterialityScopeGlobal,
		Defaulted:            true,
	}
}

// MaterialityResolver resolves tolerance thresholds with scope priority:
// account > statement > property > global > hardcoded default.
type MaterialityResolver struct {
	byAccount   map[string]MaterialityConfig
	byStatement map[DocumentType]MaterialityConfig
	byProperty  map[uuid.UUID]MaterialityConfig
	global      *MaterialityConfig
	logger      *zap.Logger
}

// NewMaterialityResolver creates a resolver over the given configs
func NewMaterialityResolver(configs []MaterialityConfig, logger *zap.Logger) *MaterialityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &MaterialityResolver{
		byAccount:   make(map[string]MaterialityConfig),
		byStatement: make(map[DocumentType]MaterialityConfig),
		byProperty:  make(map[uuid.UUID]MaterialityConfig),
		logger:      logger,
	}
	for _, cfg := range configs {
		switch cfg.Scope {
		case MaterialityScopeAccount:
			r.byAccount[cfg.AccountID] = cfg
		case MaterialityScopeStatement:
			r.byStatement[cfg.StatementType] = cfg
		case MaterialityScopeProperty:
			r.byProperty[cfg.PropertyID] = cfg
		case MaterialityScopeGlobal:
			c := cfg
			r.global = &c
		}
	}
	return r
}

// Resolve returns the effective materiality for an account in context,
// falling through the scope priority order. A missing configuration at every
// level is a non-fatal ConfigurationError: the hardcoded default applies and
// a warning is logged.
func (r *MaterialityResolver) Resolve(propertyID uuid.UUID, statementType DocumentType, accountID string) ResolvedMateriality {
	if accountID != "" {
		if cfg, ok := r.byAccount[accountID]; ok {
			return resolved(cfg, MaterialityScopeAccount)
		}
	}
	if cfg, ok := r.byStatement[statementType]; ok {
		return resolved(cfg, MaterialityScopeStatement)
	}
	if cfg, ok := r.byProperty[propertyID]; ok {
		return resolved(cfg, MaterialityScopeProperty)
	}
	if r.global != nil {
		return resolved(*r.global, MaterialityScopeGlobal)
	}
	r.logger.Warn("no materiality configuration at any scope, using hardcoded default",
		zap.String("property_id", propertyID.String()),
		zap.String("statement_type", statementType.String()),
		zap.String("account_id", accountID),
		zap.String("code", "CONFIGURATION_ERROR"),
	)
	return DefaultMateriality()
}

func resolved(cfg MaterialityConfig, source MaterialityScope) ResolvedMateriality {
	risk := cfg.RiskClass
	if !risk.IsValid() {
		risk = RiskClassMedium
	}
	return ResolvedMateriality{
		AbsoluteThreshold:    cfg.AbsoluteThreshold,
		RelativeThresholdPct: cfg.RelativeThresholdPct,
		RiskClass:            risk,
		Source:               source,
	}
}
