package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	app "github.com/reims/backend/internal/application/reconciliation"
)

// RuleHandler exposes calculated rule management and materiality
// configuration.
type RuleHandler struct {
	BaseHandler
	rules *app.RuleService
}

func NewRuleHandler(rules *app.RuleService, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{
		BaseHandler: NewBaseHandler(logger),
		rules:       rules,
	}
}

func (h *RuleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rules := rg.Group("/rules")
	{
		rules.POST("", h.CreateRule)
		rules.GET("", h.ListActiveRules)
		rules.GET("/:rule_id/versions", h.GetRuleVersions)
		rules.POST("/:rule_id/deactivate", h.DeactivateRule)
	}
	rg.PUT("/materiality", h.SetMateriality)
}

// CreateRule creates a rule, or the next version when the rule ID already
// exists.
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req app.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	rule, err := h.rules.CreateRule(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, rule)
}

// GetRuleVersions returns the full version history of a rule, newest first.
func (h *RuleHandler) GetRuleVersions(c *gin.Context) {
	ruleID := c.Param("rule_id")
	if ruleID == "" {
		h.BadRequest(c, "Rule ID is required")
		return
	}

	versions, err := h.rules.GetRuleVersions(c.Request.Context(), ruleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, versions)
}

// ListActiveRules lists active rules applicable to a property, global rules
// included. An absent property_id lists global rules only.
func (h *RuleHandler) ListActiveRules(c *gin.Context) {
	propertyID := uuid.Nil
	if raw := c.Query("property_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid property ID")
			return
		}
		propertyID = parsed
	}

	rules, err := h.rules.ListActiveRules(c.Request.Context(), propertyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, rules)
}

// DeactivateRule deactivates the active version of a rule.
func (h *RuleHandler) DeactivateRule(c *gin.Context) {
	ruleID := c.Param("rule_id")
	if ruleID == "" {
		h.BadRequest(c, "Rule ID is required")
		return
	}

	if err := h.rules.DeactivateRule(c.Request.Context(), ruleID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// SetMateriality creates or replaces a materiality threshold for a scope.
func (h *RuleHandler) SetMateriality(c *gin.Context) {
	var req app.MaterialityConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	config, err := h.rules.SetMateriality(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, config)
}
