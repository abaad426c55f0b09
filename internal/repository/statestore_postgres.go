package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
)

// PostgresStateStore keeps read-state keys in a portal_state table, for
// deployments that want durable state without a Redis dependency. It offers
// no change notifications; pair it with a single gateway instance or layer
// the Redis store in front.
type PostgresStateStore struct {
	db *sqlx.DB
}

// NewPostgresStateStore constructs the store.
func NewPostgresStateStore(db *sqlx.DB) *PostgresStateStore {
	return &PostgresStateStore{db: db}
}

// Get returns the stored value or ErrNotFound.
func (s *PostgresStateStore) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM portal_state WHERE key = $1`
	var value string
	if err := s.db.GetContext(ctx, &value, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.ErrNotFound
		}
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return value, nil
}

// Set upserts the value. The origin id is only meaningful to watchers and
// this store emits no change events, so it is not persisted.
func (s *PostgresStateStore) Set(ctx context.Context, key, value, _ string) error {
	const query = `INSERT INTO portal_state (key, value, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// Delete removes the key. Unknown keys are a no-op.
func (s *PostgresStateStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM portal_state WHERE key = $1`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete state %s: %w", key, err)
	}
	return nil
}
