package codingrule

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/Jerry-OC/mission-control/pkg/database"
	"github.com/Jerry-OC/mission-control/pkg/models"
)

// captureDB records the upsert statement. The zero sqlx.Row it hands back
// scans as no-rows, which is fine: these tests assert the generated SQL,
// not the scan.
type captureDB struct {
	database.DB
	query string
	args  []any
}

func (f *captureDB) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	f.query = query
	f.args = args
	return &sqlx.Row{}
}

type execResult int64

func (r execResult) LastInsertId() (int64, error) { return 0, nil }
func (r execResult) RowsAffected() (int64, error) { return int64(r), nil }

type captureExecer struct {
	query string
	args  []any
}

func (c *captureExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.query = query
	c.args = args
	return execResult(0), nil
}

func (c *captureExecer) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (c *captureExecer) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (c *captureExecer) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return &sqlx.Row{}
}

func strPtr(s string) *string {
	return &s
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestUpsert(t *testing.T) {
	t.Run("conflict targets the case-insensitive pattern identity", func(t *testing.T) {
		db := &captureDB{}
		r := NewRepository(db, testLogger())

		_, _ = r.Upsert(context.Background(), models.UpsertCodingRuleRequest{
			PatternType:  "merchant",
			PatternValue: "Home Depot",
			JobID:        strPtr("job-1"),
		})

		assert.Contains(t, db.query, "ON CONFLICT (pattern_type, lower(pattern_value)) DO UPDATE")
	})

	t.Run("re-submitting a pattern overwrites the disposition but never match_count", func(t *testing.T) {
		db := &captureDB{}
		r := NewRepository(db, testLogger())

		_, _ = r.Upsert(context.Background(), models.UpsertCodingRuleRequest{
			PatternType:  "merchant",
			PatternValue: "Home Depot",
			JobID:        strPtr("job-1"),
			CostCodeID:   strPtr("cc-1"),
			Label:        strPtr("Materials"),
		})

		setStart := strings.Index(db.query, "DO UPDATE")
		setEnd := strings.Index(db.query, "RETURNING")
		assert.True(t, setStart >= 0 && setEnd > setStart)

		set := db.query[setStart:setEnd]
		assert.Contains(t, set, "job_id = EXCLUDED.job_id")
		assert.Contains(t, set, "cost_code_id = EXCLUDED.cost_code_id")
		assert.Contains(t, set, "label = EXCLUDED.label")
		assert.NotContains(t, set, "match_count")

		// a fresh rule still starts its counter at zero
		assert.Contains(t, db.args, 0)
	})

	t.Run("empty disposition strings store as NULL", func(t *testing.T) {
		db := &captureDB{}
		r := NewRepository(db, testLogger())

		_, _ = r.Upsert(context.Background(), models.UpsertCodingRuleRequest{
			PatternType:  "merchant",
			PatternValue: "Home Depot",
			JobID:        strPtr(""),
			CostCodeID:   strPtr("cc-1"),
		})

		assert.NotContains(t, db.args, "")
		assert.Contains(t, db.args, nil)
		assert.Contains(t, db.args, "cc-1")
	})
}

func TestIncrementMatchCount(t *testing.T) {
	t.Run("adds to the counter instead of overwriting it", func(t *testing.T) {
		run := &captureExecer{}
		r := NewRepository(nil, testLogger())

		err := r.IncrementMatchCount(context.Background(), run, "rule-1", 7)
		assert.NoError(t, err)

		assert.Contains(t, run.query, "match_count = match_count + ")
		assert.Contains(t, run.args, int64(7))
		assert.Contains(t, run.args, "rule-1")
	})
}
