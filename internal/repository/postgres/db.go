// internal/repository/postgres/db.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return db.pool.Begin(ctx)
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Migrate creates the console tables when they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS secret_bundles (
	operator_id TEXT PRIMARY KEY,
	secrets     JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS dispatch_jobs (
	id                TEXT PRIMARY KEY,
	operator_id       TEXT NOT NULL,
	channel           TEXT NOT NULL,
	message_length    INTEGER NOT NULL,
	total             INTEGER NOT NULL,
	succeeded         INTEGER NOT NULL,
	failed_recipients TEXT[] NOT NULL DEFAULT '{}',
	length_exceeded   BOOLEAN NOT NULL DEFAULT FALSE,
	started_at        TIMESTAMPTZ NOT NULL,
	finished_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatch_jobs_operator_started
	ON dispatch_jobs (operator_id, started_at DESC);

CREATE TABLE IF NOT EXISTS dispatch_results (
	job_id    TEXT NOT NULL REFERENCES dispatch_jobs(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	recipient TEXT NOT NULL,
	success   BOOLEAN NOT NULL,
	detail    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (job_id, position)
);
`
