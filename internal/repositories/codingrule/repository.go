package codingrule

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Jerry-OC/mission-control/pkg/database"
	"github.com/Jerry-OC/mission-control/pkg/models"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
)

const table = "coding_rules"

// Repository handles coding rule persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new coding rule repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// List retrieves all coding rules with joined job and cost code names,
// newest first.
func (r *Repository) List(ctx context.Context) ([]models.CodingRuleWithNames, error) {
	ctx, span := tracing.StartSpan(ctx, "codingrule.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"cr.id", "cr.pattern_type", "cr.pattern_value",
		"cr.job_id", "cr.cost_code_id", "cr.label",
		"cr.match_count", "cr.created_at",
		"j.name AS job_name",
		"cc.name AS cost_code_name",
		"cc.number AS cost_code_number",
	)
	sb.From("coding_rules cr")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "jobs j", "cr.job_id = j.id")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "cost_codes cc", "cr.cost_code_id = cc.id")
	sb.OrderBy("cr.created_at DESC")

	query, args := sb.Build()
	rules := []models.CodingRuleWithNames{}
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list coding rules")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list coding rules")
	}

	return rules, nil
}

// Get retrieves a coding rule by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.CodingRule, error) {
	ctx, span := tracing.StartSpan(ctx, "codingrule.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "pattern_type", "pattern_value", "job_id", "cost_code_id", "label", "match_count", "created_at")
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var rule models.CodingRule
	if err := r.db.GetContext(ctx, &rule, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "coding rule %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get coding rule")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get coding rule")
	}

	return &rule, nil
}

// Upsert creates a coding rule or, when one already exists for the same
// pattern (case-insensitive on the value), overwrites its disposition and
// label in place and refreshes the timestamp. The match counter is never
// reset by a re-submission.
func (r *Repository) Upsert(ctx context.Context, req models.UpsertCodingRuleRequest) (*models.CodingRule, error) {
	ctx, span := tracing.StartSpan(ctx, "codingrule.Repository.Upsert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"pattern_type":  req.PatternType,
		"pattern_value": req.PatternValue,
	})

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("id", "pattern_type", "pattern_value", "job_id", "cost_code_id", "label", "match_count", "created_at")
	ib.Values(uuid.New().String(), req.PatternType, req.PatternValue, fkValue(req.JobID), fkValue(req.CostCodeID), req.Label, 0, time.Now().UTC())
	ub := ib.OnConflict("pattern_type", "lower(pattern_value)")
	ub.Set(
		ub.Assign("job_id", database.Excluded("job_id")),
		ub.Assign("cost_code_id", database.Excluded("cost_code_id")),
		ub.Assign("label", database.Excluded("label")),
		ub.Assign("created_at", time.Now().UTC()),
	)
	ib.Returning("id", "pattern_type", "pattern_value", "job_id", "cost_code_id", "label", "match_count", "created_at")

	query, args := ib.Build()
	var rule models.CodingRule
	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(&rule); err != nil {
		log.WithError(err).Error("Failed to upsert coding rule")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert coding rule")
	}

	log.WithFields(map[string]any{"id": rule.ID}).Info("Upserted coding rule")
	return &rule, nil
}

// IncrementMatchCount bumps a rule's cumulative match counter by the rows a
// single apply affected.
func (r *Repository) IncrementMatchCount(ctx context.Context, run database.Execer, id string, by int64) error {
	ctx, span := tracing.StartSpan(ctx, "codingrule.Repository.IncrementMatchCount")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(ub.Add("match_count", by))
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := run.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to increment match count")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to increment match count")
	}

	return nil
}

// fkValue maps a missing or empty reference to NULL so it never reaches a
// UUID column as ''.
func fkValue(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

// DeleteRule removes a coding rule through the supplied Execer.
func (r *Repository) DeleteRule(ctx context.Context, run database.Execer, id string) error {
	ctx, span := tracing.StartSpan(ctx, "codingrule.Repository.DeleteRule")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	if _, err := run.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to delete coding rule")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete coding rule")
	}

	return nil
}
