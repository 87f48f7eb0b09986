package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Execer is the query surface shared by DB and Tx. Repository methods that
// must be able to run inside a caller-owned transaction take an Execer, so
// the caller decides whether the statement joins a transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}
