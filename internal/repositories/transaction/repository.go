package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Jerry-OC/mission-control/pkg/coding"
	"github.com/Jerry-OC/mission-control/pkg/database"
	"github.com/Jerry-OC/mission-control/pkg/models"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
)

const table = "transactions"

var columns = []string{
	"id", "date", "amount", "description", "merchant",
	"account_name", "account_id", "category", "status",
	"job_id", "cost_code_id", "notes", "external_id",
	"created_at", "updated_at",
}

// Repository handles transaction ledger persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new transaction repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// List retrieves transactions with joined job and cost code names, newest
// first. An empty status returns every row up to the limit.
func (r *Repository) List(ctx context.Context, status string, limit int) ([]models.LedgerEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"t.id", "t.date", "t.amount", "t.description", "t.merchant",
		"t.account_name", "t.account_id", "t.category", "t.status",
		"t.job_id", "t.cost_code_id", "t.notes", "t.external_id",
		"t.created_at", "t.updated_at",
		"j.name AS job_name",
		"cc.name AS cost_code_name",
		"cc.number AS cost_code_number",
	)
	sb.From(fmt.Sprintf("%s t", table))
	sb.JoinWithOption(sqlbuilder.LeftJoin, "jobs j", "t.job_id = j.id")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "cost_codes cc", "t.cost_code_id = cc.id")
	if status != "" {
		sb.Where(sb.Equal("t.status", status))
	}
	sb.OrderBy("t.date DESC", "t.created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	entries := []models.LedgerEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list transactions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list transactions")
	}

	return entries, nil
}

// UncodedCount returns the number of transactions still awaiting a coding
// decision.
func (r *Repository) UncodedCount(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.UncodedCount")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(table)
	sb.Where(sb.Equal("status", models.TransactionStatusUncoded))

	query, args := sb.Build()
	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count uncoded transactions")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count uncoded transactions")
	}

	return count, nil
}

// Get retrieves a transaction by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Transaction, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.Get")
	defer span.End()

	txn, err := r.get(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "transaction %s not found", id)
	}

	return txn, nil
}

// Update applies a manual edit to a single transaction. Only the provided
// fields change; an empty string on job_id or cost_code_id clears the
// reference.
func (r *Repository) Update(ctx context.Context, id string, req models.UpdateTransactionRequest) (*models.Transaction, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.Update")
	defer span.End()

	if req.IsEmpty() {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)

	assignments := []string{}
	if req.JobID != nil {
		assignments = append(assignments, ub.Assign("job_id", fkValue(*req.JobID)))
	}
	if req.CostCodeID != nil {
		assignments = append(assignments, ub.Assign("cost_code_id", fkValue(*req.CostCodeID)))
	}
	if req.Status != nil {
		assignments = append(assignments, ub.Assign("status", *req.Status))
	}
	if req.Notes != nil {
		assignments = append(assignments, ub.Assign("notes", *req.Notes))
	}
	assignments = append(assignments, ub.Assign("updated_at", time.Now().UTC()))
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to update transaction")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update transaction")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update transaction")
	}
	if affected == 0 {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "transaction %s not found", id)
	}

	return r.Get(ctx, id)
}

// ResolveMatching codes every uncoded transaction matching the pattern with
// the given disposition. Only the fields the rule carries are assigned; a
// rule without a job reference leaves job_id untouched rather than clearing
// it. Returns the number of rows affected.
func (r *Repository) ResolveMatching(ctx context.Context, run database.Execer, p coding.Pattern, jobID, costCodeID *string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.ResolveMatching")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)

	assignments := []string{ub.Assign("status", models.TransactionStatusCoded)}
	if jobID != nil {
		assignments = append(assignments, ub.Assign("job_id", *jobID))
	}
	if costCodeID != nil {
		assignments = append(assignments, ub.Assign("cost_code_id", *costCodeID))
	}
	assignments = append(assignments, ub.Assign("updated_at", time.Now().UTC()))
	ub.Set(assignments...)

	cond, ok := p.Condition(ub)
	if !ok {
		return 0, nil
	}
	ub.Where(ub.Equal("status", models.TransactionStatusUncoded), cond)

	query, args := ub.Build()
	result, err := run.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to code matching transactions")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to code matching transactions")
	}

	return result.RowsAffected()
}

// ReverseMatching returns to uncoded every coded transaction that matches
// the pattern and still carries the given disposition. Rows recoded by hand
// or by another rule keep their assignment.
func (r *Repository) ReverseMatching(ctx context.Context, run database.Execer, p coding.Pattern, jobID, costCodeID *string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.ReverseMatching")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("status", models.TransactionStatusUncoded),
		ub.Assign("job_id", nil),
		ub.Assign("cost_code_id", nil),
		ub.Assign("updated_at", time.Now().UTC()),
	)

	cond, ok := p.Condition(ub)
	if !ok {
		return 0, nil
	}
	ub.Where(
		ub.Equal("status", models.TransactionStatusCoded),
		cond,
		fmt.Sprintf("job_id IS NOT DISTINCT FROM %s", ub.Var(jobID)),
		fmt.Sprintf("cost_code_id IS NOT DISTINCT FROM %s", ub.Var(costCodeID)),
	)

	query, args := ub.Build()
	result, err := run.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reverse matching transactions")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reverse matching transactions")
	}

	return result.RowsAffected()
}

// ExcludeMatching removes from the codable ledger every uncoded transaction
// matching any of the patterns, in a single scan. Coded and already-excluded
// rows are never touched.
func (r *Repository) ExcludeMatching(ctx context.Context, run database.Execer, patterns []coding.Pattern) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.ExcludeMatching")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("status", models.TransactionStatusExcluded),
		ub.Assign("updated_at", time.Now().UTC()),
	)

	conds := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if cond, ok := p.Condition(ub); ok {
			conds = append(conds, cond)
		}
	}
	if len(conds) == 0 {
		return 0, nil
	}
	ub.Where(ub.Equal("status", models.TransactionStatusUncoded), ub.Or(conds...))

	query, args := ub.Build()
	result, err := run.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to exclude matching transactions")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to exclude matching transactions")
	}

	return result.RowsAffected()
}

// GetTransaction retrieves a transaction by ID through the supplied Execer.
// Returns nil without error when the row does not exist.
func (r *Repository) GetTransaction(ctx context.Context, run database.Execer, id string) (*models.Transaction, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.GetTransaction")
	defer span.End()

	return r.get(ctx, run, id)
}

// RetireParent marks a split parent as excluded, clears its disposition and
// records the split note.
func (r *Repository) RetireParent(ctx context.Context, run database.Execer, id string, note string) error {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.RetireParent")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("status", models.TransactionStatusExcluded),
		ub.Assign("job_id", nil),
		ub.Assign("cost_code_id", nil),
		ub.Assign("notes", note),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := run.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to retire split parent")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to retire split parent")
	}

	return nil
}

// InsertChild creates one split child. ID and timestamps are assigned here.
func (r *Repository) InsertChild(ctx context.Context, run database.Execer, child models.Transaction) error {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.InsertChild")
	defer span.End()

	child.ID = uuid.New().String()
	now := time.Now().UTC()
	child.CreatedAt = now
	child.UpdatedAt = now

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		child.ID, child.Date, child.Amount, child.Description, child.Merchant,
		child.AccountName, child.AccountID, child.Category, child.Status,
		child.JobID, child.CostCodeID, child.Notes, child.ExternalID,
		child.CreatedAt, child.UpdatedAt,
	)

	query, args := ib.Build()
	if _, err := run.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert split child")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert split child")
	}

	return nil
}

// InsertFromFeed creates an uncoded transaction from the ingestion feed.
// Rows are deduplicated on external_id; a replayed message inserts nothing.
// Returns true when a new row was created.
func (r *Repository) InsertFromFeed(ctx context.Context, txn models.Transaction) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "transaction.Repository.InsertFromFeed")
	defer span.End()

	txn.ID = uuid.New().String()
	txn.Status = models.TransactionStatusUncoded
	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		txn.ID, txn.Date, txn.Amount, txn.Description, txn.Merchant,
		txn.AccountName, txn.AccountID, txn.Category, txn.Status,
		txn.JobID, txn.CostCodeID, txn.Notes, txn.ExternalID,
		txn.CreatedAt, txn.UpdatedAt,
	)
	ib.OnConflictDoNothing("external_id")

	query, args := ib.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert feed transaction")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert feed transaction")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert feed transaction")
	}

	return affected > 0, nil
}

func (r *Repository) get(ctx context.Context, run database.Execer, id string) (*models.Transaction, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var txn models.Transaction
	if err := run.GetContext(ctx, &txn, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get transaction")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get transaction")
	}

	return &txn, nil
}

// fkValue maps an empty string to NULL so callers can clear a reference.
func fkValue(v string) any {
	if v == "" {
		return nil
	}
	return v
}
