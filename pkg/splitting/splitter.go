// Package splitting divides one ledger transaction into independently coded
// children that conserve the parent's amount.
package splitting

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/shopspring/decimal"

	"github.com/Jerry-OC/mission-control/pkg/database"
	"github.com/Jerry-OC/mission-control/pkg/metrics"
	"github.com/Jerry-OC/mission-control/pkg/models"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
)

// Tolerance is the maximum absolute difference allowed between the sum of
// the child amounts and the parent amount. It absorbs cents-level rounding
// across the allocations.
var Tolerance = decimal.RequireFromString("0.015")

// TxStarter opens a database transaction. Satisfied by database.DB.
type TxStarter interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

// Store is the ledger surface the splitter mutates. Statements run through
// the supplied Execer so the splitter controls transactional scope.
type Store interface {
	// GetTransaction returns nil without error when the row does not exist.
	GetTransaction(ctx context.Context, run database.Execer, id string) (*models.Transaction, error)
	RetireParent(ctx context.Context, run database.Execer, id string, note string) error
	InsertChild(ctx context.Context, run database.Execer, child models.Transaction) error
}

// Splitter retires a parent transaction and materializes its children. The
// retire and the inserts share one database transaction so a failure leaves
// the parent untouched.
type Splitter struct {
	db     TxStarter
	store  Store
	logger ectologger.Logger
}

// NewSplitter creates a new transaction splitter
func NewSplitter(db TxStarter, store Store, logger ectologger.Logger) *Splitter {
	return &Splitter{
		db:     db,
		store:  store,
		logger: logger,
	}
}

// Split validates the request, retires the original transaction and creates
// one coded child per allocation. Returns the number of children created.
// Validation runs fully before any store access; the first failing check
// wins.
func (s *Splitter) Split(ctx context.Context, req models.SplitRequest) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "splitting.Splitter.Split")
	defer span.End()

	if err := validate(req); err != nil {
		return 0, err
	}

	ctxTx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	original, err := s.store.GetTransaction(ctxTx, tx, req.OriginalID)
	if err != nil {
		return 0, err
	}
	if original == nil {
		return 0, httperror.NewHTTPErrorf(http.StatusNotFound, "transaction %s not found", req.OriginalID)
	}

	sum := decimal.Zero
	for _, alloc := range req.Splits {
		sum = sum.Add(alloc.Amount)
	}
	if sum.Sub(original.Amount).Abs().GreaterThan(Tolerance) {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest,
			"split amounts sum to %s but the original transaction is %s",
			sum.StringFixed(2), original.Amount.StringFixed(2))
	}

	note := fmt.Sprintf("Split into %d parts", len(req.Splits))
	if err := s.store.RetireParent(ctxTx, tx, original.ID, note); err != nil {
		return 0, err
	}

	for _, alloc := range req.Splits {
		if err := s.store.InsertChild(ctxTx, tx, childOf(*original, alloc)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctxTx); err != nil {
		return 0, err
	}

	metrics.SplitsTotal.Inc()
	metrics.SplitChildrenTotal.Add(float64(len(req.Splits)))
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"original_id": original.ID,
		"children":    len(req.Splits),
	}).Info("Split transaction")
	return len(req.Splits), nil
}

// validate applies the shape checks that need no ledger state. Order
// matters: child count, then coding completeness, then amounts.
func validate(req models.SplitRequest) error {
	if req.OriginalID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "original_id is required")
	}
	if len(req.Splits) < 2 {
		return httperror.NewHTTPError(http.StatusBadRequest, "a split requires at least 2 parts")
	}
	for i, alloc := range req.Splits {
		if alloc.JobID == "" || alloc.CostCodeID == "" {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "split %d must specify both job_id and cost_code_id", i+1)
		}
	}
	for i, alloc := range req.Splits {
		if !alloc.Amount.IsPositive() {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "split %d amount must be greater than zero", i+1)
		}
	}
	return nil
}

// childOf builds a coded child carrying the parent's descriptive fields and
// the allocation's disposition.
func childOf(parent models.Transaction, alloc models.SplitAllocation) models.Transaction {
	notes := alloc.Notes
	if notes == nil || *notes == "" {
		n := fmt.Sprintf("Split from tx %s", parent.ID)
		notes = &n
	}
	jobID := alloc.JobID
	costCodeID := alloc.CostCodeID
	return models.Transaction{
		Date:        parent.Date,
		Amount:      alloc.Amount.Round(2),
		Description: parent.Description,
		Merchant:    parent.Merchant,
		AccountName: parent.AccountName,
		AccountID:   parent.AccountID,
		Category:    parent.Category,
		Status:      models.TransactionStatusCoded,
		JobID:       &jobID,
		CostCodeID:  &costCodeID,
		Notes:       notes,
	}
}
