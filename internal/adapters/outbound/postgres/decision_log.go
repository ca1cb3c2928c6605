package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ outbound.DecisionSink = (*DecisionLog)(nil)

// DecisionLog appends every published decision to keeper_decisions.
type DecisionLog struct {
	pool      *pgxpool.Pool
	namespace string
	logger    *slog.Logger
}

// NewDecisionLog creates a DecisionLog for namespace.
func NewDecisionLog(pool *pgxpool.Pool, namespace string, logger *slog.Logger) (*DecisionLog, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionLog{
		pool:      pool,
		namespace: namespace,
		logger:    logger.With("component", "decision-log"),
	}, nil
}

// Publish inserts one row for the event.
func (l *DecisionLog) Publish(ctx context.Context, event outbound.DecisionEvent) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO keeper_decisions (namespace, invocation_id, can_exec, message, call_count, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.namespace,
		event.InvocationID,
		event.Decision.CanExec,
		event.Decision.Message,
		len(event.Decision.CallData),
		event.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record decision %s: %w", event.InvocationID, err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (l *DecisionLog) Close() error {
	return nil
}
