package reconciliation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RecordService ingests extracted financial records into the record store.
// Extraction itself happens upstream; this service only accepts line items
// that already carry their statement, code, name, and amount.
type RecordService struct {
	records reconciliation.RecordRepository
}

// NewRecordService creates a RecordService
func NewRecordService(records reconciliation.RecordRepository) *RecordService {
	return &RecordService{records: records}
}

// RecordItem is one extracted line item in an ingestion request
type RecordItem struct {
	DocumentType string          `json:"document_type" binding:"required"`
	AccountCode  string          `json:"account_code"`
	AccountName  string          `json:"account_name" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
}

// IngestRecordsRequest represents a batch of extracted records for one
// property and period
type IngestRecordsRequest struct {
	PropertyID uuid.UUID    `json:"property_id" binding:"required"`
	PeriodID   string       `json:"period_id" binding:"required"`
	Records    []RecordItem `json:"records" binding:"required,min=1,dive"`
}

// IngestResult reports what a batch ingestion stored
type IngestResult struct {
	Stored     int            `json:"stored"`
	ByDocument map[string]int `json:"by_document"`
}

// IngestRecords validates and stores a batch of extracted records
func (s *RecordService) IngestRecords(ctx context.Context, req IngestRecordsRequest) (*IngestResult, error) {
	if err := reconciliation.ValidatePeriodID(req.PeriodID); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	records := make([]reconciliation.FinancialRecord, 0, len(req.Records))
	byDocument := make(map[string]int)
	for i, item := range req.Records {
		doc := reconciliation.DocumentType(item.DocumentType)
		if !doc.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT",
				fmt.Sprintf("Record %d: unknown document type %q", i, item.DocumentType))
		}
		if item.AccountName == "" {
			return nil, shared.NewDomainError("INVALID_INPUT",
				fmt.Sprintf("Record %d: account name is required", i))
		}
		records = append(records, reconciliation.FinancialRecord{
			ID:           uuid.New(),
			DocumentType: doc,
			AccountCode:  item.AccountCode,
			AccountName:  item.AccountName,
			Amount:       item.Amount,
			PropertyID:   req.PropertyID,
			PeriodID:     req.PeriodID,
		})
		byDocument[item.DocumentType]++
	}

	if err := s.records.SaveBatch(ctx, records); err != nil {
		return nil, err
	}
	return &IngestResult{Stored: len(records), ByDocument: byDocument}, nil
}

// ListRecords returns the stored records for a property and period, grouped by
// document type
func (s *RecordService) ListRecords(ctx context.Context, propertyID uuid.UUID, periodID string) (map[string][]reconciliation.FinancialRecord, error) {
	if err := reconciliation.ValidatePeriodID(periodID); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	set, err := s.records.FindByPropertyAndPeriod(ctx, propertyID, periodID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]reconciliation.FinancialRecord, len(set))
	for doc, records := range set {
		out[doc.String()] = records
	}
	return out, nil
}
