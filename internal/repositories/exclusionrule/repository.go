package exclusionrule

import (
	"context"
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

const table = "exclusion_rules"

// Repository handles exclusion rule persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new exclusion rule repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// List retrieves all exclusion rules, newest first
func (r *Repository) List(ctx context.Context) ([]models.ExclusionRule, error) {
	ctx, span := tracing.StartSpan(ctx, "exclusionrule.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "pattern_type", "pattern_value", "label", "created_at")
	sb.From(table)
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	rules := []models.ExclusionRule{}
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list exclusion rules")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list exclusion rules")
	}

	return rules, nil
}

// Upsert creates an exclusion rule or, when one already exists for the same
// pattern (case-insensitive on the value), overwrites its label and
// refreshes the timestamp.
func (r *Repository) Upsert(ctx context.Context, req models.UpsertExclusionRuleRequest) (*models.ExclusionRule, error) {
	ctx, span := tracing.StartSpan(ctx, "exclusionrule.Repository.Upsert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"pattern_type":  req.PatternType,
		"pattern_value": req.PatternValue,
	})

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("id", "pattern_type", "pattern_value", "label", "created_at")
	ib.Values(uuid.New().String(), req.PatternType, req.PatternValue, req.Label, time.Now().UTC())
	ub := ib.OnConflict("pattern_type", "lower(pattern_value)")
	ub.Set(
		ub.Assign("label", database.Excluded("label")),
		ub.Assign("created_at", time.Now().UTC()),
	)
	ib.Returning("id", "pattern_type", "pattern_value", "label", "created_at")

	query, args := ib.Build()
	var rule models.ExclusionRule
	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(&rule); err != nil {
		log.WithError(err).Error("Failed to upsert exclusion rule")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert exclusion rule")
	}

	log.WithFields(map[string]any{"id": rule.ID}).Info("Upserted exclusion rule")
	return &rule, nil
}

// Delete removes an exclusion rule by ID. Already-excluded transactions are
// left as they are; exclusion is not reversed.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "exclusionrule.Repository.Delete")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to delete exclusion rule")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete exclusion rule")
	}

	return nil
}
