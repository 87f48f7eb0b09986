package coding

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"

	"github.com/Jerry-OC/mission-control/pkg/database"
	"github.com/Jerry-OC/mission-control/pkg/metrics"
	"github.com/Jerry-OC/mission-control/pkg/models"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
)

// TxStarter opens (or joins) a database transaction. Satisfied by
// database.DB.
type TxStarter interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

// Ledger is the transaction-store surface the engines mutate. Statements run
// through the supplied Execer so the engine controls transactional scope.
type Ledger interface {
	ResolveMatching(ctx context.Context, run database.Execer, p Pattern, jobID, costCodeID *string) (int64, error)
	ReverseMatching(ctx context.Context, run database.Execer, p Pattern, jobID, costCodeID *string) (int64, error)
	ExcludeMatching(ctx context.Context, run database.Execer, patterns []Pattern) (int64, error)
}

// RuleStore is the coding-rule persistence surface the engines need.
type RuleStore interface {
	IncrementMatchCount(ctx context.Context, run database.Execer, id string, by int64) error
	DeleteRule(ctx context.Context, run database.Execer, id string) error
}

// Engine bulk-applies and bulk-reverses coding decisions across the ledger.
// It holds no state between invocations; the ledger is the single source of
// truth.
type Engine struct {
	db     TxStarter
	ledger Ledger
	rules  RuleStore
	logger ectologger.Logger
}

// NewEngine creates a new coding engine
func NewEngine(db TxStarter, ledger Ledger, rules RuleStore, logger ectologger.Logger) *Engine {
	return &Engine{
		db:     db,
		ledger: ledger,
		rules:  rules,
		logger: logger,
	}
}

// ApplyCodingRule codes every uncoded transaction matching the rule's
// pattern and bumps the rule's match counter by exactly the rows affected in
// this invocation. The row update and the counter increment share one
// database transaction. Returns 0 when the pattern kind is unknown or no
// rows match.
func (e *Engine) ApplyCodingRule(ctx context.Context, rule models.CodingRule) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "coding.Engine.ApplyCodingRule")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"rule_id":      rule.ID,
		"pattern_type": rule.PatternType,
	})

	p := RulePattern(rule.PatternType, rule.PatternValue)
	if !p.Known() {
		log.Warn("Unknown pattern type, rule matches nothing")
		return 0, nil
	}

	ctxTx, tx, err := e.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	affected, err := e.ledger.ResolveMatching(ctxTx, tx, p, rule.JobID, rule.CostCodeID)
	if err != nil {
		return 0, err
	}

	// Cumulative, not a recount.
	if affected > 0 {
		if err := e.rules.IncrementMatchCount(ctxTx, tx, rule.ID, affected); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctxTx); err != nil {
		return 0, err
	}

	metrics.TransactionsCodedTotal.WithLabelValues(rule.PatternType).Add(float64(affected))
	log.WithFields(map[string]any{"affected": affected}).Info("Applied coding rule")
	return affected, nil
}

// ReverseCodingRule returns to uncoded every coded transaction matching the
// rule's pattern whose current disposition equals the rule's own, then
// deletes the rule. Reversal and deletion are one logical operation: the rule
// must not outlive the transactions it could still affect. Transactions coded
// by another rule or by hand with a different disposition are left alone.
func (e *Engine) ReverseCodingRule(ctx context.Context, rule models.CodingRule) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "coding.Engine.ReverseCodingRule")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"rule_id":      rule.ID,
		"pattern_type": rule.PatternType,
	})

	ctxTx, tx, err := e.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var reversed int64
	p := RulePattern(rule.PatternType, rule.PatternValue)
	if p.Known() {
		reversed, err = e.ledger.ReverseMatching(ctxTx, tx, p, rule.JobID, rule.CostCodeID)
		if err != nil {
			return 0, err
		}
	}

	if err := e.rules.DeleteRule(ctxTx, tx, rule.ID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return 0, err
	}

	metrics.TransactionsReversedTotal.WithLabelValues(rule.PatternType).Add(float64(reversed))
	log.WithFields(map[string]any{"reversed": reversed}).Info("Reversed and deleted coding rule")
	return reversed, nil
}

// ApplyExclusionRules excludes every uncoded transaction matching any of the
// given rules in a single combined scan. Rules with unknown pattern kinds
// contribute nothing. Coded and already-excluded transactions are never
// touched.
func (e *Engine) ApplyExclusionRules(ctx context.Context, rules []models.ExclusionRule) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "coding.Engine.ApplyExclusionRules")
	defer span.End()

	patterns := make([]Pattern, 0, len(rules))
	for _, rule := range rules {
		p := RulePattern(rule.PatternType, rule.PatternValue)
		if p.Known() {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) == 0 {
		return 0, nil
	}

	ctxTx, tx, err := e.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	affected, err := e.ledger.ExcludeMatching(ctxTx, tx, patterns)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return 0, err
	}

	metrics.TransactionsExcludedTotal.Add(float64(affected))
	e.logger.WithContext(ctx).WithFields(map[string]any{
		"rules":    len(patterns),
		"affected": affected,
	}).Info("Applied exclusion rules")
	return affected, nil
}
