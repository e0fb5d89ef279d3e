package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStaleUpdate signals a guarded update that matched no row: the row was
// concurrently changed (or removed) between read and write. Services map it
// to a retryable conflict.
var ErrStaleUpdate = errors.New("stale update: row changed concurrently")

// querier abstracts over a pool and a transaction so helpers can run inside
// either.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
