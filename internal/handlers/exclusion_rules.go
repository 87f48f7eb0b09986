package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Jerry-OC/mission-control/pkg/models"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
)

// ExclusionRuleStore is the exclusion rule persistence surface the HTTP
// layer needs.
type ExclusionRuleStore interface {
	List(ctx context.Context) ([]models.ExclusionRule, error)
	Upsert(ctx context.Context, req models.UpsertExclusionRuleRequest) (*models.ExclusionRule, error)
	Delete(ctx context.Context, id string) error
}

// ExclusionEngine bulk-applies exclusion rules to the ledger.
type ExclusionEngine interface {
	ApplyExclusionRules(ctx context.Context, rules []models.ExclusionRule) (int64, error)
}

// ExclusionRuleHandler handles exclusion rule API requests
type ExclusionRuleHandler struct {
	store  ExclusionRuleStore
	engine ExclusionEngine
}

// NewExclusionRuleHandler creates a new exclusion rule handler
func NewExclusionRuleHandler(store ExclusionRuleStore, engine ExclusionEngine) *ExclusionRuleHandler {
	return &ExclusionRuleHandler{
		store:  store,
		engine: engine,
	}
}

// RegisterRoutes registers the exclusion rule routes
func (h *ExclusionRuleHandler) RegisterRoutes(g *echo.Group) {
	rules := g.Group("/exclusion-rules")
	rules.GET("", h.List)
	rules.POST("", h.Upsert)
	rules.DELETE("/:id", h.Delete)
}

// ListExclusionRulesResponse wraps the exclusion rule list.
type ListExclusionRulesResponse struct {
	Rules []models.ExclusionRule `json:"rules"`
}

// List handles GET /exclusion-rules
func (h *ExclusionRuleHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ExclusionRuleHandler.List")
	defer span.End()

	rules, err := h.store.List(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ListExclusionRulesResponse{Rules: rules})
}

// UpsertExclusionRuleResponse carries the stored rule and how many
// transactions the sweep excluded.
type UpsertExclusionRuleResponse struct {
	Rule    *models.ExclusionRule `json:"rule"`
	Applied int64                 `json:"applied"`
}

// Upsert handles POST /exclusion-rules. Unless apply_now is explicitly
// false, every exclusion rule is re-applied to the uncoded ledger after the
// upsert in one combined sweep.
func (h *ExclusionRuleHandler) Upsert(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ExclusionRuleHandler.Upsert")
	defer span.End()

	var req models.UpsertExclusionRuleRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest("pattern_type and pattern_value are required")
	}

	rule, err := h.store.Upsert(ctx, req)
	if err != nil {
		return err
	}

	var applied int64
	if req.ApplyNow == nil || *req.ApplyNow {
		rules, err := h.store.List(ctx)
		if err != nil {
			return err
		}
		applied, err = h.engine.ApplyExclusionRules(ctx, rules)
		if err != nil {
			return err
		}
	}

	return SuccessResponse(c, UpsertExclusionRuleResponse{
		Rule:    rule,
		Applied: applied,
	})
}

// DeleteExclusionRuleResponse acknowledges the deletion.
type DeleteExclusionRuleResponse struct {
	OK bool `json:"ok"`
}

// Delete handles DELETE /exclusion-rules/:id. Transactions the rule already
// excluded stay excluded.
func (h *ExclusionRuleHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ExclusionRuleHandler.Delete")
	defer span.End()

	id, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.store.Delete(ctx, id); err != nil {
		return err
	}

	return SuccessResponse(c, DeleteExclusionRuleResponse{OK: true})
}
