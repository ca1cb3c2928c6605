package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

// Compile-time check that KVStore implements outbound.KVStore
var _ outbound.KVStore = (*KVStore)(nil)

// KVStore stores keeper state in the keeper_state table, scoped to a namespace.
type KVStore struct {
	pool      *pgxpool.Pool
	namespace string
	logger    *slog.Logger
}

// NewKVStore creates a KVStore for namespace. The schema must already be migrated.
func NewKVStore(pool *pgxpool.Pool, namespace string, logger *slog.Logger) (*KVStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{
		pool:      pool,
		namespace: namespace,
		logger:    logger.With("component", "postgres-store"),
	}, nil
}

// Get returns the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM keeper_state WHERE namespace = $1 AND key = $2`,
		s.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO keeper_state (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.namespace, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM keeper_state WHERE namespace = $1 AND key = $2`,
		s.namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	s.logger.Debug("deleted key", "key", key, "rows", tag.RowsAffected())
	return nil
}
