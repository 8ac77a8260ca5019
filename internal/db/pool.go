// Package db is the Postgres side of taskhub: schema, task lookups, the
// dependency journal, the activity log and the LISTEN bridge.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates a new PostgreSQL connection pool.
func NewPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

// Queries groups every statement taskhub runs against the pool.
type Queries struct {
	Pool *pgxpool.Pool
}

// Ping checks that the database answers.
func (q *Queries) Ping(ctx context.Context) error {
	_, err := q.Pool.Exec(ctx, "SELECT 1")
	return err
}
