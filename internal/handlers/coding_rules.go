package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Jerry-OC/mission-control/pkg/models"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
)

// CodingRuleStore is the rule persistence surface the HTTP layer needs.
type CodingRuleStore interface {
	List(ctx context.Context) ([]models.CodingRuleWithNames, error)
	Get(ctx context.Context, id string) (*models.CodingRule, error)
	Upsert(ctx context.Context, req models.UpsertCodingRuleRequest) (*models.CodingRule, error)
}

// CodingEngine bulk-applies and bulk-reverses coding rules.
type CodingEngine interface {
	ApplyCodingRule(ctx context.Context, rule models.CodingRule) (int64, error)
	ReverseCodingRule(ctx context.Context, rule models.CodingRule) (int64, error)
}

// CodingRuleHandler handles coding rule API requests
type CodingRuleHandler struct {
	store  CodingRuleStore
	engine CodingEngine
}

// NewCodingRuleHandler creates a new coding rule handler
func NewCodingRuleHandler(store CodingRuleStore, engine CodingEngine) *CodingRuleHandler {
	return &CodingRuleHandler{
		store:  store,
		engine: engine,
	}
}

// RegisterRoutes registers the coding rule routes
func (h *CodingRuleHandler) RegisterRoutes(g *echo.Group) {
	rules := g.Group("/coding-rules")
	rules.GET("", h.List)
	rules.POST("", h.Upsert)
	rules.DELETE("/:id", h.Delete)
}

// ListCodingRulesResponse wraps the rule read model.
type ListCodingRulesResponse struct {
	Rules []models.CodingRuleWithNames `json:"rules"`
}

// List handles GET /coding-rules
func (h *CodingRuleHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "CodingRuleHandler.List")
	defer span.End()

	rules, err := h.store.List(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ListCodingRulesResponse{Rules: rules})
}

// UpsertCodingRuleResponse carries the stored rule and, when apply_now was
// set, how many transactions the rule just coded.
type UpsertCodingRuleResponse struct {
	Rule    *models.CodingRule `json:"rule"`
	Applied int64              `json:"applied"`
}

// Upsert handles POST /coding-rules
func (h *CodingRuleHandler) Upsert(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "CodingRuleHandler.Upsert")
	defer span.End()

	var req models.UpsertCodingRuleRequest
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
	if req.ApplyNow {
		applied, err = h.engine.ApplyCodingRule(ctx, *rule)
		if err != nil {
			return err
		}
	}

	return SuccessResponse(c, UpsertCodingRuleResponse{
		Rule:    rule,
		Applied: applied,
	})
}

// DeleteCodingRuleResponse reports how many transactions the deletion
// reversed back to uncoded.
type DeleteCodingRuleResponse struct {
	Reversed int64 `json:"reversed"`
}

// Delete handles DELETE /coding-rules/:id. Deleting a rule also reverses
// the transactions it coded, provided their disposition still matches the
// rule's.
func (h *CodingRuleHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "CodingRuleHandler.Delete")
	defer span.End()

	id, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	rule, err := h.store.Get(ctx, id)
	if err != nil {
		return err
	}

	reversed, err := h.engine.ReverseCodingRule(ctx, *rule)
	if err != nil {
		return err
	}

	return SuccessResponse(c, DeleteCodingRuleResponse{Reversed: reversed})
}
