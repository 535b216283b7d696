// Package store defines the persistence seam the queue, scheduler, and
// worker packages depend on. They never see *pgxpool.Pool directly —
// only this narrow interface — so the caller's own transaction can be
// threaded through the Queue API without exposing the connection pool
// type in its public signature, so queue writes can interleave with a
// caller's own writes in one commit without leaking the driver type.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx. Every store method
// accepts it instead of a concrete pool, so a handler can pass its own
// open transaction (to interleave an audit-log insert, say) or nothing
// at all and let the Queue open its own transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner is satisfied by *pgxpool.Pool: it can open a new transaction.
// pgx.Tx satisfies it too, since its Begin opens a savepoint-backed
// nested transaction.
type Beginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}
