package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	app "github.com/reims/backend/internal/application/reconciliation"
	"github.com/reims/backend/internal/infrastructure/statement"
	"github.com/reims/backend/internal/interfaces/http/dto"
)

// RecordHandler exposes financial record ingestion and retrieval.
type RecordHandler struct {
	BaseHandler
	records *app.RecordService
}

func NewRecordHandler(records *app.RecordService, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{
		BaseHandler: NewBaseHandler(logger),
		records:     records,
	}
}

func (h *RecordHandler) RegisterRoutes(rg *gin.RouterGroup) {
	records := rg.Group("/records")
	{
		records.POST("", h.IngestRecords)
		records.POST("/import", h.ImportCSV)
		records.GET("", h.ListRecords)
	}
}

// IngestRecords stores a batch of extracted records for one property and
// period. Resubmitting a batch replaces the previous amounts.
func (h *RecordHandler) IngestRecords(c *gin.Context) {
	var req app.IngestRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.records.IngestRecords(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

type importQuery struct {
	PropertyID   string `form:"property_id" binding:"required,uuid"`
	PeriodID     string `form:"period_id" binding:"required"`
	DocumentType string `form:"document_type"`
}

// ImportCSV ingests a statement CSV export. The body is the raw CSV; the
// property, period, and optional default document type come from the query
// string. Rows that fail validation are reported without blocking the rest.
func (h *RecordHandler) ImportCSV(c *gin.Context) {
	var query importQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.ValidationError(c, err)
		return
	}
	propertyID, err := uuid.Parse(query.PropertyID)
	if err != nil {
		h.BadRequest(c, "Invalid property ID")
		return
	}

	reader := statement.NewCSVReader(
		statement.WithDefaultDocumentType(query.DocumentType))
	parsed, err := reader.Parse(c.Request.Body)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
		return
	}

	req := app.IngestRecordsRequest{
		PropertyID: propertyID,
		PeriodID:   query.PeriodID,
	}
	for _, line := range parsed.Lines {
		req.Records = append(req.Records, app.RecordItem{
			DocumentType: line.DocumentType,
			AccountCode:  line.AccountCode,
			AccountName:  line.AccountName,
			Amount:       line.Amount,
		})
	}

	var result *app.IngestResult
	if len(req.Records) > 0 {
		result, err = h.records.IngestRecords(c.Request.Context(), req)
		if err != nil {
			h.HandleError(c, err)
			return
		}
	} else {
		result = &app.IngestResult{ByDocument: map[string]int{}}
	}

	h.Created(c, gin.H{
		"stored":      result.Stored,
		"by_document": result.ByDocument,
		"skipped":     parsed.Skipped,
		"row_errors":  parsed.Errors,
	})
}

type listRecordsQuery struct {
	PropertyID string `form:"property_id" binding:"required,uuid"`
	PeriodID   string `form:"period_id" binding:"required"`
}

// ListRecords returns the stored records for a property and period, grouped
// by document type.
func (h *RecordHandler) ListRecords(c *gin.Context) {
	var query listRecordsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.ValidationError(c, err)
		return
	}

	propertyID, err := uuid.Parse(query.PropertyID)
	if err != nil {
		h.BadRequest(c, "Invalid property ID")
		return
	}

	records, err := h.records.ListRecords(c.Request.Context(), propertyID, query.PeriodID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, records)
}
