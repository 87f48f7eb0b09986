package splitting

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Jerry-OC/mission-control/pkg/database"
	"github.com/Jerry-OC/mission-control/pkg/models"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (f *fakeTx) IsOpen() bool { return !f.committed && !f.rolledBack }

func (f *fakeTx) Commit(ctx context.Context) error { f.committed = true; return nil }

func (f *fakeTx) Rollback(ctx context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}

func (f *fakeTx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (f *fakeTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (f *fakeTx) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}

func (f *fakeTx) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return nil, nil
}

func (f *fakeTx) Rebind(query string) string { return query }

type fakeDB struct {
	tx *fakeTx
}

func (f *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	f.tx = &fakeTx{}
	return ctx, f.tx, nil
}

type fakeStore struct {
	original *models.Transaction

	getCalls    int
	retiredID   string
	retiredNote string
	children    []models.Transaction
}

func (f *fakeStore) GetTransaction(ctx context.Context, run database.Execer, id string) (*models.Transaction, error) {
	f.getCalls++
	if f.original != nil && f.original.ID == id {
		return f.original, nil
	}
	return nil, nil
}

func (f *fakeStore) RetireParent(ctx context.Context, run database.Execer, id string, note string) error {
	f.retiredID = id
	f.retiredNote = note
	return nil
}

func (f *fakeStore) InsertChild(ctx context.Context, run database.Execer, child models.Transaction) error {
	f.children = append(f.children, child)
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func strPtr(s string) *string {
	return &s
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func original(amt string) *models.Transaction {
	return &models.Transaction{
		ID:          "tx-1",
		Amount:      amount(amt),
		Description: strPtr("LUMBER YARD"),
		Merchant:    strPtr("Lumber Yard"),
		Status:      models.TransactionStatusUncoded,
	}
}

func TestSplit(t *testing.T) {
	t.Run("conserving split retires the parent and creates coded children", func(t *testing.T) {
		db := &fakeDB{}
		store := &fakeStore{original: original("100.00")}
		splitter := NewSplitter(db, store, testLogger())

		created, err := splitter.Split(context.Background(), models.SplitRequest{
			OriginalID: "tx-1",
			Splits: []models.SplitAllocation{
				{JobID: "job-1", CostCodeID: "cc-1", Amount: amount("60.00")},
				{JobID: "job-2", CostCodeID: "cc-2", Amount: amount("40.00"), Notes: strPtr("materials")},
			},
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, created)
		assert.True(t, db.tx.committed)

		assert.Equal(t, "tx-1", store.retiredID)
		assert.Equal(t, "Split into 2 parts", store.retiredNote)

		assert.Len(t, store.children, 2)
		first := store.children[0]
		assert.Equal(t, models.TransactionStatusCoded, first.Status)
		assert.Equal(t, "job-1", *first.JobID)
		assert.Equal(t, "cc-1", *first.CostCodeID)
		assert.Equal(t, "Split from tx tx-1", *first.Notes)
		assert.Equal(t, "Lumber Yard", *first.Merchant)
		assert.True(t, amount("60.00").Equal(first.Amount))

		assert.Equal(t, "materials", *store.children[1].Notes)
	})

	t.Run("amount mismatch beyond tolerance fails with both sums, no mutation", func(t *testing.T) {
		db := &fakeDB{}
		store := &fakeStore{original: original("100.00")}
		splitter := NewSplitter(db, store, testLogger())

		_, err := splitter.Split(context.Background(), models.SplitRequest{
			OriginalID: "tx-1",
			Splits: []models.SplitAllocation{
				{JobID: "job-1", CostCodeID: "cc-1", Amount: amount("60.00")},
				{JobID: "job-2", CostCodeID: "cc-2", Amount: amount("39.98")},
			},
		})
		assert.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
		assert.Contains(t, err.Error(), "99.98")
		assert.Contains(t, err.Error(), "100.00")

		assert.Empty(t, store.retiredID)
		assert.Empty(t, store.children)
		assert.False(t, db.tx.committed)
	})

	t.Run("mismatch within tolerance succeeds", func(t *testing.T) {
		db := &fakeDB{}
		store := &fakeStore{original: original("100.00")}
		splitter := NewSplitter(db, store, testLogger())

		created, err := splitter.Split(context.Background(), models.SplitRequest{
			OriginalID: "tx-1",
			Splits: []models.SplitAllocation{
				{JobID: "job-1", CostCodeID: "cc-1", Amount: amount("60.00")},
				{JobID: "job-2", CostCodeID: "cc-2", Amount: amount("39.99")},
			},
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, created)
	})

	t.Run("fewer than two children is rejected before any store access", func(t *testing.T) {
		db := &fakeDB{}
		store := &fakeStore{original: original("100.00")}
		splitter := NewSplitter(db, store, testLogger())

		_, err := splitter.Split(context.Background(), models.SplitRequest{
			OriginalID: "tx-1",
			Splits: []models.SplitAllocation{
				{JobID: "job-1", CostCodeID: "cc-1", Amount: amount("100.00")},
			},
		})
		assert.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
		assert.Zero(t, store.getCalls)
		assert.Nil(t, db.tx)
	})

	t.Run("every child must be fully coded", func(t *testing.T) {
		store := &fakeStore{original: original("100.00")}
		splitter := NewSplitter(&fakeDB{}, store, testLogger())

		_, err := splitter.Split(context.Background(), models.SplitRequest{
			OriginalID: "tx-1",
			Splits: []models.SplitAllocation{
				{JobID: "job-1", CostCodeID: "cc-1", Amount: amount("60.00")},
				{JobID: "job-2", Amount: amount("40.00")},
			},
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "job_id and cost_code_id")
		assert.Zero(t, store.getCalls)
	})

	t.Run("child amounts must be strictly positive", func(t *testing.T) {
		store := &fakeStore{original: original("100.00")}
		splitter := NewSplitter(&fakeDB{}, store, testLogger())

		_, err := splitter.Split(context.Background(), models.SplitRequest{
			OriginalID: "tx-1",
			Splits: []models.SplitAllocation{
				{JobID: "job-1", CostCodeID: "cc-1", Amount: amount("100.00")},
				{JobID: "job-2", CostCodeID: "cc-2", Amount: amount("0")},
			},
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "greater than zero")
		assert.Zero(t, store.getCalls)
	})

	t.Run("missing original is a 404", func(t *testing.T) {
		db := &fakeDB{}
		store := &fakeStore{}
		splitter := NewSplitter(db, store, testLogger())

		_, err := splitter.Split(context.Background(), models.SplitRequest{
			OriginalID: "tx-missing",
			Splits: []models.SplitAllocation{
				{JobID: "job-1", CostCodeID: "cc-1", Amount: amount("60.00")},
				{JobID: "job-2", CostCodeID: "cc-2", Amount: amount("40.00")},
			},
		})
		assert.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
		assert.False(t, db.tx.committed)
	})
}
