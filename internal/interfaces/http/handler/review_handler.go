package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	app "github.com/reims/backend/internal/application/reconciliation"
	"github.com/reims/backend/internal/domain/reconciliation"
)

// ReviewHandler exposes the human review surface: match approval, discrepancy
// resolution, health scores and rule outcomes.
type ReviewHandler struct {
	BaseHandler
	reviews *app.ReviewService
}

func NewReviewHandler(reviews *app.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		BaseHandler: NewBaseHandler(logger),
		reviews:     reviews,
	}
}

func (h *ReviewHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.GET("/:id/matches", h.ListMatches)
		sessions.GET("/:id/discrepancies", h.ListDiscrepancies)
		sessions.GET("/:id/health", h.GetHealthScore)
		sessions.GET("/:id/rule-results", h.ListRuleResults)
	}
	matches := rg.Group("/matches")
	{
		matches.POST("/:id/approve", h.ApproveMatch)
		matches.POST("/:id/reject", h.RejectMatch)
	}
	discrepancies := rg.Group("/discrepancies")
	{
		discrepancies.POST("/:id/resolve", h.ResolveDiscrepancy)
	}
}

// ListMatches lists the current generation's matches for a session.
func (h *ReviewHandler) ListMatches(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var filter app.MatchListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}

	page, err := h.reviews.ListMatches(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListDiscrepancies lists the current generation's discrepancies for a
// session.
func (h *ReviewHandler) ListDiscrepancies(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var filter app.DiscrepancyListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}

	page, err := h.reviews.ListDiscrepancies(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ApproveMatch approves a suggested match, with optional reviewer notes.
func (h *ReviewHandler) ApproveMatch(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req app.ReviewNoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.ValidationError(c, err)
			return
		}
	}

	match, err := h.reviews.ApproveMatch(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, match)
}

// RejectMatch rejects a suggested match. The reason is mandatory.
func (h *ReviewHandler) RejectMatch(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req app.RejectMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	match, err := h.reviews.RejectMatch(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, match)
}

// ResolveDiscrepancy marks a discrepancy resolved with reviewer notes and an
// optional corrected value.
func (h *ReviewHandler) ResolveDiscrepancy(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req app.ResolveDiscrepancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	discrepancy, err := h.reviews.ResolveDiscrepancy(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, discrepancy)
}

// GetHealthScore returns the stored health score for a session, weighted for
// the requested persona. Defaults to the controller view.
func (h *ReviewHandler) GetHealthScore(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	persona := c.DefaultQuery("persona", string(reconciliation.PersonaController))

	score, err := h.reviews.GetHealthScore(c.Request.Context(), id, persona)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, score)
}

// ListRuleResults returns the current generation's rule outcomes for a
// session.
func (h *ReviewHandler) ListRuleResults(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	results, err := h.reviews.ListRuleResults(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, results)
}

func (h *ReviewHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid ID")
		return uuid.Nil, false
	}
	return id, true
}
