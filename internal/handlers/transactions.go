package handlers

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Jerry-OC/mission-control/pkg/models"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
)

const (
	defaultListLimit = 200
	allListLimit     = 500
)

// TransactionLedger is the transaction surface the HTTP layer needs.
type TransactionLedger interface {
	List(ctx context.Context, status string, limit int) ([]models.LedgerEntry, error)
	UncodedCount(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, req models.UpdateTransactionRequest) (*models.Transaction, error)
}

// TransactionSplitter validates and executes a transaction split.
type TransactionSplitter interface {
	Split(ctx context.Context, req models.SplitRequest) (int, error)
}

// TransactionHandler handles transaction ledger API requests
type TransactionHandler struct {
	ledger   TransactionLedger
	splitter TransactionSplitter
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(ledger TransactionLedger, splitter TransactionSplitter) *TransactionHandler {
	return &TransactionHandler{
		ledger:   ledger,
		splitter: splitter,
	}
}

// RegisterRoutes registers the transaction routes
func (h *TransactionHandler) RegisterRoutes(g *echo.Group) {
	transactions := g.Group("/transactions")
	transactions.GET("", h.List)
	transactions.PATCH("/:id", h.Update)
	transactions.POST("/split", h.Split)
}

// ListTransactionsResponse is the ledger read model plus the uncoded badge
// count.
type ListTransactionsResponse struct {
	Transactions []models.LedgerEntry `json:"transactions"`
	UncodedCount int64                `json:"uncoded_count"`
	Total        int                  `json:"total"`
}

// List handles GET /transactions
func (h *TransactionHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "TransactionHandler.List")
	defer span.End()

	status := c.QueryParam("status")
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = defaultListLimit
	}
	// "all" is a UI convenience: every status, with a wider cap.
	if status == "all" {
		status = ""
		limit = allListLimit
	}

	entries, err := h.ledger.List(ctx, status, limit)
	if err != nil {
		return err
	}

	uncoded, err := h.ledger.UncodedCount(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ListTransactionsResponse{
		Transactions: entries,
		UncodedCount: uncoded,
		Total:        len(entries),
	})
}

// UpdateTransactionResponse carries the updated row and the refreshed
// uncoded count.
type UpdateTransactionResponse struct {
	Transaction  *models.Transaction `json:"transaction"`
	UncodedCount int64               `json:"uncoded_count"`
}

// Update handles PATCH /transactions/:id
func (h *TransactionHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "TransactionHandler.Update")
	defer span.End()

	id, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	var req models.UpdateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	txn, err := h.ledger.Update(ctx, id, req)
	if err != nil {
		return err
	}

	uncoded, err := h.ledger.UncodedCount(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, UpdateTransactionResponse{
		Transaction:  txn,
		UncodedCount: uncoded,
	})
}

// SplitTransactionResponse reports how many children a split created.
type SplitTransactionResponse struct {
	SplitsCreated int   `json:"splits_created"`
	UncodedCount  int64 `json:"uncoded_count"`
}

// Split handles POST /transactions/split
func (h *TransactionHandler) Split(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "TransactionHandler.Split")
	defer span.End()

	var req models.SplitRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	created, err := h.splitter.Split(ctx, req)
	if err != nil {
		return err
	}

	uncoded, err := h.ledger.UncodedCount(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, SplitTransactionResponse{
		SplitsCreated: created,
		UncodedCount:  uncoded,
	})
}
