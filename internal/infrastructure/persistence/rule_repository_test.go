package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormRuleRepository_FindActive(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewGormRuleRepository(db)
	ctx := context.Background()

	propertyID := uuid.New()

	global := reconciliation.NewRuleVersion("balance_sheet_equation", 0,
		"Balance sheet equation", "total_assets = total_liabilities + total_equity")
	global.ToleranceAbsolute = decimal.RequireFromString("0.01")

	scoped := reconciliation.NewRuleVersion("dscr_minimum", 0,
		"DSCR covenant", "net_operating_income / debt_service >= 1.25")
	scoped.PropertyID = &propertyID

	retired := reconciliation.NewRuleVersion("noi_check", 0,
		"NOI check", "net_operating_income = total_revenue - operating_expenses")
	retired.Active = false

	require.NoError(t, repo.Save(ctx, &global))
	require.NoError(t, repo.Save(ctx, &scoped))
	require.NoError(t, repo.Save(ctx, &retired))

	t.Run("includes global and property-scoped rules for the property", func(t *testing.T) {
		rules, err := repo.FindActive(ctx, propertyID)
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, "balance_sheet_equation", rules[0].RuleID)
		assert.Equal(t, "dscr_minimum", rules[1].RuleID)
	})

	t.Run("excludes rules scoped to other properties", func(t *testing.T) {
		rules, err := repo.FindActive(ctx, uuid.New())
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "balance_sheet_equation", rules[0].RuleID)
	})
}

func TestGormRuleRepository_FindVersions(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewGormRuleRepository(db)
	ctx := context.Background()

	v1 := reconciliation.NewRuleVersion("balance_sheet_equation", 0,
		"Balance sheet equation", "total_assets = total_liabilities + total_equity")
	v1.Active = false
	v2 := reconciliation.NewRuleVersion("balance_sheet_equation", v1.Version,
		"Balance sheet equation", "total_assets = total_liabilities + total_equity + minority_interest")
	require.NoError(t, repo.Save(ctx, &v1))
	require.NoError(t, repo.Save(ctx, &v2))

	t.Run("returns versions newest first", func(t *testing.T) {
		versions, err := repo.FindVersions(ctx, "balance_sheet_equation")
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, 2, versions[0].Version)
		assert.True(t, versions[0].Active)
		assert.Equal(t, 1, versions[1].Version)
		assert.False(t, versions[1].Active)
	})

	t.Run("returns empty for an unknown rule", func(t *testing.T) {
		versions, err := repo.FindVersions(ctx, "phantom_rule")
		require.NoError(t, err)
		assert.Empty(t, versions)
	})
}

func TestGormMaterialityRepository_FindForProperty(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewGormMaterialityRepository(db)
	ctx := context.Background()

	propertyID := uuid.New()

	global := reconciliation.MaterialityConfig{
		ID:                   uuid.New(),
		Scope:                reconciliation.MaterialityScopeGlobal,
		AbsoluteThreshold:    decimal.RequireFromString("500.00"),
		RelativeThresholdPct: decimal.RequireFromString("1.0"),
		RiskClass:            reconciliation.RiskClassMedium,
	}
	property := reconciliation.MaterialityConfig{
		ID:                   uuid.New(),
		Scope:                reconciliation.MaterialityScopeProperty,
		PropertyID:           propertyID,
		AbsoluteThreshold:    decimal.RequireFromString("100.00"),
		RelativeThresholdPct: decimal.RequireFromString("0.5"),
		RiskClass:            reconciliation.RiskClassHigh,
	}
	other := reconciliation.MaterialityConfig{
		ID:                   uuid.New(),
		Scope:                reconciliation.MaterialityScopeProperty,
		PropertyID:           uuid.New(),
		AbsoluteThreshold:    decimal.RequireFromString("9000.00"),
		RelativeThresholdPct: decimal.RequireFromString("5.0"),
		RiskClass:            reconciliation.RiskClassLow,
	}
	require.NoError(t, repo.Save(ctx, &global))
	require.NoError(t, repo.Save(ctx, &property))
	require.NoError(t, repo.Save(ctx, &other))

	configs, err := repo.FindForProperty(ctx, propertyID)
	require.NoError(t, err)
	require.Len(t, configs, 2)

	ids := []uuid.UUID{configs[0].ID, configs[1].ID}
	assert.Contains(t, ids, global.ID)
	assert.Contains(t, ids, property.ID)
}

func TestGormRuleResultRepository(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewGormRuleResultRepository(db)
	ctx := context.Background()

	sessionID := uuid.New()
	results := []reconciliation.RuleEvaluationResult{
		{
			SessionID:     sessionID,
			Generation:    1,
			RuleID:        "noi_check",
			Version:       1,
			Status:        reconciliation.RuleStatusPass,
			ExpectedValue: decimal.RequireFromString("1200.00"),
			ActualValue:   decimal.RequireFromString("1200.00"),
			Difference:    decimal.Zero,
		},
		{
			SessionID:     sessionID,
			Generation:    2,
			RuleID:        "balance_sheet_equation",
			Version:       2,
			Status:        reconciliation.RuleStatusFail,
			ExpectedValue: decimal.RequireFromString("5000.00"),
			ActualValue:   decimal.RequireFromString("4800.00"),
			Difference:    decimal.RequireFromString("200.00"),
			Message:       "Assets short by 200.00",
		},
	}
	for i := range results {
		results[i].ID = uuid.New()
	}
	require.NoError(t, repo.SaveBatch(ctx, results))

	t.Run("lists results for one generation", func(t *testing.T) {
		found, err := repo.FindBySession(ctx, sessionID, 2)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "balance_sheet_equation", found[0].RuleID)
		assert.Equal(t, reconciliation.RuleStatusFail, found[0].Status)
		assert.True(t, found[0].Difference.Equal(decimal.RequireFromString("200.00")))
	})

	t.Run("delete by generation drops stale results", func(t *testing.T) {
		require.NoError(t, repo.DeleteByGeneration(ctx, sessionID, 2))
		found, err := repo.FindBySession(ctx, sessionID, 1)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}
