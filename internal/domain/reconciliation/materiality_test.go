package reconciliation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaterialityResolverScopePriority(t *testing.T) {
	propertyID := uuid.New()
	configs := []MaterialityConfig{
		{Scope: MaterialityScopeGlobal, AbsoluteThreshold: dec("1.00"), RelativeThresholdPct: dec("1"), RiskClass: RiskClassLow},
		{Scope: MaterialityScopeProperty, PropertyID: propertyID, AbsoluteThreshold: dec("10.00"), RelativeThresholdPct: dec("1"), RiskClass: RiskClassMedium},
		{Scope: MaterialityScopeStatement, StatementType: DocumentTypeBalanceSheet, AbsoluteThreshold: dec("50.00"), RelativeThresholdPct: dec("1"), RiskClass: RiskClassHigh},
		{Scope: MaterialityScopeAccount, AccountID: "mortgage_payable", AbsoluteThreshold: dec("0.00"), RelativeThresholdPct: dec("0"), RiskClass: RiskClassCritical},
	}
	resolver := NewMaterialityResolver(configs, nil)

	t.Run("account scope wins", func(t *testing.T) {
		resolved := resolver.Resolve(propertyID, DocumentTypeBalanceSheet, "mortgage_payable")
		assert.Equal(t, MaterialityScopeAccount, resolved.Source)
		assert.Equal(t, RiskClassCritical, resolved.RiskClass)
		assert.False(t, resolved.Defaulted)
	})

	t.Run("statement scope beats property scope", func(t *testing.T) {
		resolved := resolver.Resolve(propertyID, DocumentTypeBalanceSheet, "cash")
		assert.Equal(t, MaterialityScopeStatement, resolved.Source)
		assert.True(t, resolved.AbsoluteThreshold.Equal(dec("50.00")))
	})

	t.Run("property scope beats global", func(t *testing.T) {
		resolved := resolver.Resolve(propertyID, DocumentTypeRentRoll, "scheduled_rent")
		assert.Equal(t, MaterialityScopeProperty, resolved.Source)
	})

	t.Run("global applies to unknown properties", func(t *testing.T) {
		resolved := resolver.Resolve(uuid.New(), DocumentTypeRentRoll, "scheduled_rent")
		assert.Equal(t, MaterialityScopeGlobal, resolved.Source)
	})
}

func TestMaterialityResolverDefault(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	resolver := NewMaterialityResolver(nil, zap.New(core))

	resolved := resolver.Resolve(uuid.New(), DocumentTypeBalanceSheet, "cash")
	assert.True(t, resolved.Defaulted)
	assert.True(t, resolved.AbsoluteThreshold.Equal(dec("0.01")))
	assert.Equal(t, RiskClassMedium, resolved.RiskClass)

	entries := logs.All()
	assert.Len(t, entries, 1, "the fallback is logged as a configuration problem")
	assert.Contains(t, entries[0].Message, "default")
}

func TestResolvedMaterialityThresholdFor(t *testing.T) {
	materiality := ResolvedMateriality{
		AbsoluteThreshold:    dec("100.00"),
		RelativeThresholdPct: dec("1"),
	}

	t.Run("absolute floor dominates small amounts", func(t *testing.T) {
		assert.True(t, materiality.ThresholdFor(dec("500.00")).Equal(dec("100.00")))
	})

	t.Run("relative threshold dominates large amounts", func(t *testing.T) {
		assert.True(t, materiality.ThresholdFor(dec("50000.00")).Equal(dec("500.00")))
	})

	t.Run("negative amounts use magnitude", func(t *testing.T) {
		assert.True(t, materiality.ThresholdFor(dec("-50000.00")).Equal(dec("500.00")))
	})

	t.Run("zero thresholds mean exact agreement", func(t *testing.T) {
		exact := ResolvedMateriality{AbsoluteThreshold: decimal.Zero, RelativeThresholdPct: decimal.Zero}
		assert.True(t, exact.ThresholdFor(dec("1000000.00")).IsZero())
	})
}
