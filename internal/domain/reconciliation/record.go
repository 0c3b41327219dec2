package reconciliation

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentType identifies the source statement a financial record was extracted from
type DocumentType string

const (
	DocumentTypeBalanceSheet      DocumentType = "balance_sheet"
	DocumentTypeIncomeStatement   DocumentType = "income_statement"
	DocumentTypeCashFlow          DocumentType = "cash_flow"
	DocumentTypeRentRoll          DocumentType = "rent_roll"
	DocumentTypeMortgageStatement DocumentType = "mortgage_statement"
)

// IsValid checks if the document type is valid
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeBalanceSheet, DocumentTypeIncomeStatement, DocumentTypeCashFlow,
		DocumentTypeRentRoll, DocumentTypeMortgageStatement:
		return true
	}
	return false
}

// String returns the string representation
func (t DocumentType) String() string {
	return string(t)
}

// AllDocumentTypes returns all valid document types
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeBalanceSheet,
		DocumentTypeIncomeStatement,
		DocumentTypeCashFlow,
		DocumentTypeRentRoll,
		DocumentTypeMortgageStatement,
	}
}

// FinancialRecord is a single extracted line item for one property and period.
// Records are owned by the extraction pipeline and are read-only to this core;
// CanonicalAccountID and MappingConfidence are filled in by the account mapper
// during session normalization.
type FinancialRecord struct {
	ID                 uuid.UUID
	DocumentType       DocumentType
	AccountCode        string
	AccountName        string
	Amount             decimal.Decimal
	PropertyID         uuid.UUID
	PeriodID           string
	CanonicalAccountID string
	MappingConfidence  float64
}

// IsMapped returns true if the record resolved to a canonical account
func (r *FinancialRecord) IsMapped() bool {
	return r.CanonicalAccountID != ""
}

// RecordSet groups the records of one property and period by document type
type RecordSet map[DocumentType][]FinancialRecord

// Has returns true if the set contains any records for the document type
func (s RecordSet) Has(doc DocumentType) bool {
	return len(s[doc]) > 0
}

// DocumentTypes returns the document types present in the set, sorted for
// deterministic iteration
func (s RecordSet) DocumentTypes() []DocumentType {
	types := make([]DocumentType, 0, len(s))
	for doc := range s {
		if len(s[doc]) > 0 {
			types = append(types, doc)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Count returns the total number of records across all document types
func (s RecordSet) Count() int {
	n := 0
	for _, records := range s {
		n += len(records)
	}
	return n
}

// FindByCanonical returns the first record with the given canonical account on
// the given statement
func (s RecordSet) FindByCanonical(doc DocumentType, canonicalID string) (*FinancialRecord, bool) {
	for i := range s[doc] {
		if s[doc][i].CanonicalAccountID == canonicalID {
			return &s[doc][i], true
		}
	}
	return nil, false
}

// SumByCanonical sums all record amounts with the given canonical account on
// the given statement. The bool reports whether any record matched.
func (s RecordSet) SumByCanonical(doc DocumentType, canonicalID string) (decimal.Decimal, bool) {
	sum := decimal.Zero
	found := false
	for i := range s[doc] {
		if s[doc][i].CanonicalAccountID == canonicalID {
			sum = sum.Add(s[doc][i].Amount)
			found = true
		}
	}
	return sum, found
}

// NewRecordSet builds a RecordSet from a flat record list
func NewRecordSet(records []FinancialRecord) RecordSet {
	set := make(RecordSet)
	for _, r := range records {
		set[r.DocumentType] = append(set[r.DocumentType], r)
	}
	return set
}

// PriorPeriod returns the accounting period immediately before the given one.
// Periods are identified as "YYYY-MM". The bool is false when the period ID
// cannot be parsed.
func PriorPeriod(periodID string) (string, bool) {
	t, err := time.Parse("2006-01", periodID)
	if err != nil {
		return "", false
	}
	prior := t.AddDate(0, -1, 0)
	return prior.Format("2006-01"), true
}

// ValidatePeriodID checks that a period ID is well formed
func ValidatePeriodID(periodID string) error {
	if _, err := time.Parse("2006-01", periodID); err != nil {
		return fmt.Errorf("invalid period id %q: expected YYYY-MM", periodID)
	}
	return nil
}
