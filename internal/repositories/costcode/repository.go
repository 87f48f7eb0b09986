package costcode

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Jerry-OC/mission-control/pkg/database"
	"github.com/Jerry-OC/mission-control/pkg/models"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
)

// Repository handles cost code lookups
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new cost code repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// List retrieves all cost codes in numeric order
func (r *Repository) List(ctx context.Context) ([]models.CostCode, error) {
	ctx, span := tracing.StartSpan(ctx, "costcode.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "number", "name", "category")
	sb.From("cost_codes")
	sb.OrderBy("CAST(number AS INTEGER)")

	query, args := sb.Build()
	codes := []models.CostCode{}
	if err := r.db.SelectContext(ctx, &codes, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list cost codes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list cost codes")
	}

	return codes, nil
}
