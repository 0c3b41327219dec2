package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reims/backend/internal/interfaces/http/dto"
)

type ingestPayload struct {
	PropertyID string `json:"property_id" binding:"required,uuid"`
	PeriodID   string `json:"period_id" binding:"required"`
	BatchSize  int    `json:"batch_size" binding:"gte=1"`
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.POST("/ingest", func(c *gin.Context) {
		var payload ingestPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("reports missing fields by json tag name", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ingest",
			strings.NewReader(`{"property_id":"not-a-uuid","batch_size":0}`))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, dto.ErrCodeValidation)
		assert.Contains(t, body, "property_id")
		assert.Contains(t, body, "Invalid UUID format")
		assert.Contains(t, body, "period_id")
		assert.Contains(t, body, "This field is required")
		assert.Contains(t, body, "batch_size")
	})

	t.Run("valid payload passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ingest",
			strings.NewReader(`{"property_id":"7b2f3b58-9911-4f0e-9f9e-1a2b3c4d5e6f","period_id":"2025-01","batch_size":10}`))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	resp := FormatValidationErrors(assert.AnError, "req-1")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Empty(t, resp.Error.Details)
}
