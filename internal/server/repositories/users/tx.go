package users

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/jobtrack/internal/dbx"
)

// TxRunner runs fn against a Repository bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// PostgresTxRunner opens a database/sql transaction per call.
type PostgresTxRunner struct {
	db   *sql.DB
	opts *sql.TxOptions
}

func NewPostgresTxRunner(db *sql.DB, opts *sql.TxOptions) *PostgresTxRunner {
	return &PostgresTxRunner{db: db, opts: opts}
}

func (r *PostgresTxRunner) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return dbx.WithTx(ctx, r.db, r.opts, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewPostgresRepository(tx))
	})
}

// DirectRunner hands repo to fn as is. Each repository call stays atomic on
// its own but nothing is rolled back; it serves the in-memory store.
type DirectRunner struct {
	repo Repository
}

func NewDirectRunner(repo Repository) *DirectRunner {
	return &DirectRunner{repo: repo}
}

func (r *DirectRunner) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return fn(ctx, r.repo)
}
