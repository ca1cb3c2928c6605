package outbound

import (
	"context"
	"time"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
)

// DecisionEvent is published after every invocation so a downstream
// submitter (or an operator) can act on it.
type DecisionEvent struct {
	// InvocationID identifies the trigger that produced the decision.
	InvocationID string `json:"invocationId"`

	// Decision is the invocation result.
	Decision entity.Decision `json:"decision"`

	// DecidedAt is when the decision was produced.
	DecidedAt time.Time `json:"decidedAt"`
}

// DecisionSink publishes decisions.
type DecisionSink interface {
	// Publish publishes one decision event.
	Publish(ctx context.Context, event DecisionEvent) error

	// Close releases resources.
	Close() error
}
