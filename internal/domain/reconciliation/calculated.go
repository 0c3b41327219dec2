package reconciliation

import (
	"context"
	"fmt"
	"sync"

	"github.com/reims/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// Canonical account IDs the built-in cross-statement formulas tie together
const (
	AccountNetIncome               = "net_income"
	AccountRetainedEarnings        = "retained_earnings"
	AccountDepreciationExpense     = "depreciation_expense"
	AccountDepreciationAddback     = "depreciation_addback"
	AccountAccumulatedDepreciation = "accumulated_depreciation"
	AccountCash                    = "cash"
	AccountEndingCash              = "ending_cash"
	AccountMortgagePayable         = "mortgage_payable"
	AccountPrincipalBalance        = "principal_balance"
	AccountRentalIncome            = "rental_income"
	AccountScheduledRent           = "scheduled_rent"
)

// Confidence band for calculated matches: a perfect tie scores 1.0, a tie at
// the edge of materiality scores the floor.
const (
	calculatedConfidenceFloor = 0.80
	calculatedConfidenceSpan  = 0.20
)

// CalculatedMatchingStrategy applies known cross-statement accounting
// relationships: the retained-earnings roll-forward, the three-way
// depreciation tie, the cash tie, the mortgage principal tie, and the rent
// roll tie. A holding
// relationship produces matches; a broken one produces a multi-record
// discrepancy.
type CalculatedMatchingStrategy struct {
	strategy.BaseStrategy
}

// NewCalculatedMatchingStrategy creates the calculated strategy
func NewCalculatedMatchingStrategy() *CalculatedMatchingStrategy {
	return &CalculatedMatchingStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"calculated_matching",
			strategy.StrategyTypeMatching,
			"Applies cross-statement accounting relationships between statements",
		),
	}
}

// MatchType returns the match type
func (s *CalculatedMatchingStrategy) MatchType() MatchType {
	return MatchTypeCalculated
}

// formulaCheck is one relationship check over the working set
type formulaCheck func(in *StrategyInput) *StrategyOutput

// Match evaluates every applicable relationship concurrently. A relationship
// whose inputs are absent is skipped, not failed: matching proceeds with the
// document types available.
func (s *CalculatedMatchingStrategy) Match(ctx context.Context, in *StrategyInput) (*StrategyOutput, error) {
	checks := []formulaCheck{
		s.checkRetainedEarningsRollForward,
		s.checkDepreciationTie,
		s.checkEndingCashTie,
		s.checkMortgagePrincipalTie,
		s.checkRentRollTie,
	}

	outputs := make([]*StrategyOutput, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check formulaCheck) {
			defer wg.Done()
			outputs[i] = check(in)
		}(i, check)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return mergeOutputs(outputs), nil
}

// checkRetainedEarningsRollForward ties Income Statement net income to the
// period change in Balance Sheet retained earnings
func (s *CalculatedMatchingStrategy) checkRetainedEarningsRollForward(in *StrategyInput) *StrategyOutput {
	out := &StrategyOutput{}
	netIncome, ok := in.Records.FindByCanonical(DocumentTypeIncomeStatement, AccountNetIncome)
	if !ok {
		return out
	}
	retained, ok := in.Records.FindByCanonical(DocumentTypeBalanceSheet, AccountRetainedEarnings)
	if !ok {
		return out
	}
	priorRetained, ok := in.Prior.SumByCanonical(DocumentTypeBalanceSheet, AccountRetainedEarnings)
	if !ok {
		// No prior-period balance sheet: the roll-forward cannot be evaluated.
		return out
	}

	expected := retained.Amount.Sub(priorRetained)
	actual := netIncome.Amount
	s.record(in, out, formulaOutcome{
		name:        "retained_earnings_roll_forward",
		description: "Income Statement net income must equal the period change in retained earnings",
		expected:    expected,
		actual:      actual,
		pairs:       []recordPair{{netIncome, retained}},
		records:     []*FinancialRecord{netIncome, retained},
	})
	return out
}

// checkDepreciationTie ties depreciation across the Income Statement, the
// Cash Flow add-back, and the change in Balance Sheet accumulated
// depreciation (a three-way check)
func (s *CalculatedMatchingStrategy) checkDepreciationTie(in *StrategyInput) *StrategyOutput {
	out := &StrategyOutput{}
	expense, haveExpense := in.Records.FindByCanonical(DocumentTypeIncomeStatement, AccountDepreciationExpense)
	addback, haveAddback := in.Records.FindByCanonical(DocumentTypeCashFlow, AccountDepreciationAddback)
	if !haveExpense || !haveAddback {
		return out
	}

	pairs := []recordPair{{expense, addback}}
	records := []*FinancialRecord{expense, addback}
	expected := addback.Amount

	accumulated, haveAccumulated := in.Records.FindByCanonical(DocumentTypeBalanceSheet, AccountAccumulatedDepreciation)
	if haveAccumulated {
		if priorAccumulated, havePrior := in.Prior.SumByCanonical(DocumentTypeBalanceSheet, AccountAccumulatedDepreciation); havePrior {
			delta := accumulated.Amount.Sub(priorAccumulated)
			// The three legs must agree pairwise; the add-back and the balance
			// sheet delta both stand in for the expected value.
			if delta.Sub(expense.Amount).Abs().GreaterThan(addback.Amount.Sub(expense.Amount).Abs()) {
				expected = delta
			}
			pairs = append(pairs, recordPair{addback, accumulated})
			records = append(records, accumulated)
		}
	}

	s.record(in, out, formulaOutcome{
		name:        "depreciation_three_way_tie",
		description: "Depreciation must tie across the income statement, cash flow add-back, and accumulated depreciation",
		expected:    expected,
		actual:      expense.Amount,
		pairs:       pairs,
		records:     records,
	})
	return out
}

// checkEndingCashTie ties Cash Flow ending cash to Balance Sheet cash
func (s *CalculatedMatchingStrategy) checkEndingCashTie(in *StrategyInput) *StrategyOutput {
	out := &StrategyOutput{}
	endingCash, ok := in.Records.FindByCanonical(DocumentTypeCashFlow, AccountEndingCash)
	if !ok {
		return out
	}
	cash, ok := in.Records.FindByCanonical(DocumentTypeBalanceSheet, AccountCash)
	if !ok {
		return out
	}
	s.record(in, out, formulaOutcome{
		name:        "ending_cash_tie",
		description: "Cash Flow ending cash must equal Balance Sheet cash",
		expected:    cash.Amount,
		actual:      endingCash.Amount,
		pairs:       []recordPair{{endingCash, cash}},
		records:     []*FinancialRecord{endingCash, cash},
	})
	return out
}

// checkMortgagePrincipalTie ties the mortgage statement principal balance to
// the Balance Sheet mortgage payable
func (s *CalculatedMatchingStrategy) checkMortgagePrincipalTie(in *StrategyInput) *StrategyOutput {
	out := &StrategyOutput{}
	principal, ok := in.Records.FindByCanonical(DocumentTypeMortgageStatement, AccountPrincipalBalance)
	if !ok {
		return out
	}
	payable, ok := in.Records.FindByCanonical(DocumentTypeBalanceSheet, AccountMortgagePayable)
	if !ok {
		return out
	}
	s.record(in, out, formulaOutcome{
		name:        "mortgage_principal_tie",
		description: "Mortgage statement principal balance must equal Balance Sheet mortgage payable",
		expected:    payable.Amount,
		actual:      principal.Amount,
		pairs:       []recordPair{{principal, payable}},
		records:     []*FinancialRecord{principal, payable},
	})
	return out
}

// checkRentRollTie ties the rent roll scheduled rent total to Income
// Statement rental income
func (s *CalculatedMatchingStrategy) checkRentRollTie(in *StrategyInput) *StrategyOutput {
	out := &StrategyOutput{}
	scheduled, ok := in.Records.FindByCanonical(DocumentTypeRentRoll, AccountScheduledRent)
	if !ok {
		return out
	}
	rental, ok := in.Records.FindByCanonical(DocumentTypeIncomeStatement, AccountRentalIncome)
	if !ok {
		return out
	}
	s.record(in, out, formulaOutcome{
		name:        "rent_roll_tie",
		description: "Rent roll scheduled rent must equal Income Statement rental income",
		expected:    scheduled.Amount,
		actual:      rental.Amount,
		pairs:       []recordPair{{rental, scheduled}},
		records:     []*FinancialRecord{rental, scheduled},
	})
	return out
}

// recordPair is one source/target pairing a holding relationship produces
type recordPair struct {
	source *FinancialRecord
	target *FinancialRecord
}

// formulaOutcome carries one evaluated relationship
type formulaOutcome struct {
	name        string
	description string
	expected    decimal.Decimal
	actual      decimal.Decimal
	pairs       []recordPair
	records     []*FinancialRecord
}

// record turns a formula outcome into matches when the relationship holds
// within materiality, or a multi-record discrepancy when it fails
func (s *CalculatedMatchingStrategy) record(in *StrategyInput, out *StrategyOutput, outcome formulaOutcome) {
	anchor := outcome.records[0]
	materiality := in.Materiality.Resolve(in.PropertyID, anchor.DocumentType, anchor.CanonicalAccountID)
	threshold := materiality.ThresholdFor(outcome.expected)
	difference := outcome.actual.Sub(outcome.expected)

	if difference.Abs().LessThanOrEqual(threshold) {
		confidence := calculatedConfidenceFloor + calculatedConfidenceSpan*amountCloseness(difference.Abs(), threshold)
		for _, pair := range outcome.pairs {
			match := NewMatch(in.SessionID, in.Generation, pair.source, pair.target, MatchTypeCalculated, confidence)
			match.AmountDifference = difference
			match.Notes = outcome.name
			out.Matches = append(out.Matches, match)
		}
		return
	}

	severity := SeverityForRisk(materiality.RiskClass)
	description := fmt.Sprintf("%s: %s (expected %s, actual %s, difference %s)",
		outcome.name, outcome.description,
		outcome.expected.StringFixed(2), outcome.actual.StringFixed(2), difference.StringFixed(2))
	discrepancy := NewDiscrepancy(in.SessionID, in.Generation, DiscrepancyTypeFormulaViolation, severity, description)
	discrepancy.Amount = difference
	for _, r := range outcome.records {
		discrepancy.RecordIDs = append(discrepancy.RecordIDs, r.ID)
	}
	out.Discrepancies = append(out.Discrepancies, discrepancy)
}
