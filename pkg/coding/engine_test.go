package coding

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
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

type fakeLedger struct {
	resolveAffected int64
	resolveErr      error
	reverseAffected int64
	excludeAffected int64
	excludePatterns []Pattern

	resolveCalls int
	reverseCalls int
	excludeCalls int
}

func (f *fakeLedger) ResolveMatching(ctx context.Context, run database.Execer, p Pattern, jobID, costCodeID *string) (int64, error) {
	f.resolveCalls++
	return f.resolveAffected, f.resolveErr
}

func (f *fakeLedger) ReverseMatching(ctx context.Context, run database.Execer, p Pattern, jobID, costCodeID *string) (int64, error) {
	f.reverseCalls++
	return f.reverseAffected, nil
}

func (f *fakeLedger) ExcludeMatching(ctx context.Context, run database.Execer, patterns []Pattern) (int64, error) {
	f.excludeCalls++
	f.excludePatterns = patterns
	return f.excludeAffected, nil
}

type fakeRuleStore struct {
	increments   map[string]int64
	deleted      []string
	incrementErr error
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{increments: map[string]int64{}}
}

func (f *fakeRuleStore) IncrementMatchCount(ctx context.Context, run database.Execer, id string, by int64) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.increments[id] += by
	return nil
}

func (f *fakeRuleStore) DeleteRule(ctx context.Context, run database.Execer, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestApplyCodingRule(t *testing.T) {
	rule := models.CodingRule{
		ID:           "rule-1",
		PatternType:  "merchant",
		PatternValue: "Home Depot",
		JobID:        strPtr("job-1"),
		CostCodeID:   strPtr("cc-1"),
	}

	t.Run("codes matching rows and bumps the counter by rows affected", func(t *testing.T) {
		db := &fakeDB{}
		ledger := &fakeLedger{resolveAffected: 7}
		rules := newFakeRuleStore()
		engine := NewEngine(db, ledger, rules, testLogger())

		affected, err := engine.ApplyCodingRule(context.Background(), rule)
		assert.NoError(t, err)
		assert.Equal(t, int64(7), affected)
		assert.Equal(t, int64(7), rules.increments["rule-1"])
		assert.True(t, db.tx.committed)
	})

	t.Run("counter is cumulative across applies", func(t *testing.T) {
		db := &fakeDB{}
		ledger := &fakeLedger{resolveAffected: 3}
		rules := newFakeRuleStore()
		engine := NewEngine(db, ledger, rules, testLogger())

		_, err := engine.ApplyCodingRule(context.Background(), rule)
		assert.NoError(t, err)
		_, err = engine.ApplyCodingRule(context.Background(), rule)
		assert.NoError(t, err)

		assert.Equal(t, int64(6), rules.increments["rule-1"])
	})

	t.Run("second apply with no eligible rows affects nothing", func(t *testing.T) {
		db := &fakeDB{}
		ledger := &fakeLedger{resolveAffected: 0}
		rules := newFakeRuleStore()
		engine := NewEngine(db, ledger, rules, testLogger())

		affected, err := engine.ApplyCodingRule(context.Background(), rule)
		assert.NoError(t, err)
		assert.Zero(t, affected)
		assert.Zero(t, rules.increments["rule-1"])
	})

	t.Run("unknown pattern type affects nothing without touching the store", func(t *testing.T) {
		db := &fakeDB{}
		ledger := &fakeLedger{resolveAffected: 99}
		rules := newFakeRuleStore()
		engine := NewEngine(db, ledger, rules, testLogger())

		unknown := rule
		unknown.PatternType = "regex"

		affected, err := engine.ApplyCodingRule(context.Background(), unknown)
		assert.NoError(t, err)
		assert.Zero(t, affected)
		assert.Zero(t, ledger.resolveCalls)
		assert.Nil(t, db.tx)
	})

	t.Run("resolve failure rolls back without incrementing", func(t *testing.T) {
		db := &fakeDB{}
		ledger := &fakeLedger{resolveErr: errors.New("boom")}
		rules := newFakeRuleStore()
		engine := NewEngine(db, ledger, rules, testLogger())

		_, err := engine.ApplyCodingRule(context.Background(), rule)
		assert.Error(t, err)
		assert.Zero(t, rules.increments["rule-1"])
		assert.False(t, db.tx.committed)
	})
}

func TestReverseCodingRule(t *testing.T) {
	rule := models.CodingRule{
		ID:           "rule-1",
		PatternType:  "merchant",
		PatternValue: "Home Depot",
		JobID:        strPtr("job-1"),
		CostCodeID:   strPtr("cc-1"),
	}

	t.Run("reverses matching rows and deletes the rule in one transaction", func(t *testing.T) {
		db := &fakeDB{}
		ledger := &fakeLedger{reverseAffected: 4}
		rules := newFakeRuleStore()
		engine := NewEngine(db, ledger, rules, testLogger())

		reversed, err := engine.ReverseCodingRule(context.Background(), rule)
		assert.NoError(t, err)
		assert.Equal(t, int64(4), reversed)
		assert.Equal(t, []string{"rule-1"}, rules.deleted)
		assert.True(t, db.tx.committed)
	})

	t.Run("unknown pattern still deletes the rule, reversing nothing", func(t *testing.T) {
		db := &fakeDB{}
		ledger := &fakeLedger{reverseAffected: 9}
		rules := newFakeRuleStore()
		engine := NewEngine(db, ledger, rules, testLogger())

		unknown := rule
		unknown.PatternType = "regex"

		reversed, err := engine.ReverseCodingRule(context.Background(), unknown)
		assert.NoError(t, err)
		assert.Zero(t, reversed)
		assert.Zero(t, ledger.reverseCalls)
		assert.Equal(t, []string{"rule-1"}, rules.deleted)
	})
}

func TestApplyExclusionRules(t *testing.T) {
	t.Run("applies all known patterns in a single scan", func(t *testing.T) {
		db := &fakeDB{}
		ledger := &fakeLedger{excludeAffected: 5}
		engine := NewEngine(db, ledger, newFakeRuleStore(), testLogger())

		affected, err := engine.ApplyExclusionRules(context.Background(), []models.ExclusionRule{
			{PatternType: "merchant", PatternValue: "Starbucks"},
			{PatternType: "description_contains", PatternValue: "interest"},
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(5), affected)
		assert.Equal(t, 1, ledger.excludeCalls)
		assert.Len(t, ledger.excludePatterns, 2)
	})

	t.Run("unknown pattern kinds contribute nothing", func(t *testing.T) {
		db := &fakeDB{}
		ledger := &fakeLedger{excludeAffected: 5}
		engine := NewEngine(db, ledger, newFakeRuleStore(), testLogger())

		affected, err := engine.ApplyExclusionRules(context.Background(), []models.ExclusionRule{
			{PatternType: "regex", PatternValue: ".*"},
		})
		assert.NoError(t, err)
		assert.Zero(t, affected)
		assert.Zero(t, ledger.excludeCalls)
	})

	t.Run("no rules is a no-op", func(t *testing.T) {
		db := &fakeDB{}
		ledger := &fakeLedger{}
		engine := NewEngine(db, ledger, newFakeRuleStore(), testLogger())

		affected, err := engine.ApplyExclusionRules(context.Background(), nil)
		assert.NoError(t, err)
		assert.Zero(t, affected)
	})
}
