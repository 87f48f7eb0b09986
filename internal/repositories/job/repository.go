package job

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

// Repository handles job lookups
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new job repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// List retrieves all jobs ordered by name
func (r *Repository) List(ctx context.Context) ([]models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "status")
	sb.From("jobs")
	sb.OrderBy("name")

	query, args := sb.Build()
	jobs := []models.Job{}
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list jobs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list jobs")
	}

	return jobs, nil
}
