package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/faredesk/internal/metrics"
)

const backendLabel = "postgres"

// Store keeps durable records in the durable_store table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM durable_store WHERE key = $1`, key).Scan(&value)
	return found("get", key, value, err)
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO durable_store (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	observe("set", err)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM durable_store WHERE key = $1`, key)
	observe("delete", err)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Take deletes the row and returns its value in a single statement.
func (s *Store) Take(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `DELETE FROM durable_store WHERE key = $1 RETURNING value`, key).Scan(&value)
	return found("take", key, value, err)
}

func found(op, key string, value []byte, err error) ([]byte, bool, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		observe(op, nil)
		return nil, false, nil
	}
	observe(op, err)
	if err != nil {
		return nil, false, fmt.Errorf("%s %s: %w", op, key, err)
	}
	return value, true, nil
}

func observe(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOpsTotal.WithLabelValues(backendLabel, op, status).Inc()
}
