package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Jerry-OC/mission-control/pkg/models"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
)

// JobStore lists the jobs transactions can be coded to.
type JobStore interface {
	List(ctx context.Context) ([]models.Job, error)
}

// CostCodeStore lists the cost codes transactions can be coded to.
type CostCodeStore interface {
	List(ctx context.Context) ([]models.CostCode, error)
}

// LookupHandler serves the job and cost code reference lists
type LookupHandler struct {
	jobs      JobStore
	costCodes CostCodeStore
}

// NewLookupHandler creates a new lookup handler
func NewLookupHandler(jobs JobStore, costCodes CostCodeStore) *LookupHandler {
	return &LookupHandler{
		jobs:      jobs,
		costCodes: costCodes,
	}
}

// RegisterRoutes registers the lookup routes
func (h *LookupHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/jobs", h.ListJobs)
	g.GET("/cost-codes", h.ListCostCodes)
}

// ListJobsResponse wraps the job lookup list.
type ListJobsResponse struct {
	Jobs []models.Job `json:"jobs"`
}

// ListJobs handles GET /jobs
func (h *LookupHandler) ListJobs(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "LookupHandler.ListJobs")
	defer span.End()

	jobs, err := h.jobs.List(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ListJobsResponse{Jobs: jobs})
}

// ListCostCodesResponse wraps the cost code lookup list.
type ListCostCodesResponse struct {
	CostCodes []models.CostCode `json:"cost_codes"`
}

// ListCostCodes handles GET /cost-codes
func (h *LookupHandler) ListCostCodes(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "LookupHandler.ListCostCodes")
	defer span.End()

	codes, err := h.costCodes.List(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ListCostCodesResponse{CostCodes: codes})
}
