package reconciliation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Test fixtures shared across the package tests.

func testRecord(doc DocumentType, canonicalID, name string, amount string) FinancialRecord {
	return FinancialRecord{
		ID:                 uuid.New(),
		DocumentType:       doc,
		AccountCode:        canonicalID,
		AccountName:        name,
		Amount:             decimal.RequireFromString(amount),
		PropertyID:         testPropertyID,
		PeriodID:           testPeriodID,
		CanonicalAccountID: canonicalID,
		MappingConfidence:  1.0,
	}
}

func unmappedRecord(doc DocumentType, name, amount string) FinancialRecord {
	r := testRecord(doc, "", name, amount)
	r.AccountCode = ""
	return r
}

var (
	testPropertyID = uuid.MustParse("7b9e6f1a-99fc-4c3b-9d2e-4a4b8de6a001")
	testPeriodID   = "2026-06"
)

func testStrategyInput(records RecordSet) *StrategyInput {
	return &StrategyInput{
		SessionID:   uuid.New(),
		Generation:  1,
		PropertyID:  testPropertyID,
		PeriodID:    testPeriodID,
		Records:     records,
		Prior:       RecordSet{},
		Materiality: testMaterialityResolver(),
		Mapper:      NewAccountMapper(nil),
		Claimed:     NewClaimSet(),
	}
}

func testMaterialityResolver() *MaterialityResolver {
	return NewMaterialityResolver([]MaterialityConfig{
		{
			ID:                   uuid.New(),
			Scope:                MaterialityScopeGlobal,
			AbsoluteThreshold:    decimal.NewFromInt(100),
			RelativeThresholdPct: decimal.NewFromInt(1),
			RiskClass:            RiskClassMedium,
		},
	}, nil)
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
