// Package inbound contains the primary/inbound ports.
// These interfaces define the use cases that the application exposes.
package inbound

import (
	"context"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

// Invocation is the input of one keeper run: the deployment's storage and
// secrets plus free-form arguments from the trigger.
type Invocation struct {
	Storage  outbound.KVStore
	Secrets  outbound.SecretStore
	UserArgs map[string]any
}

// PriceUpdater decides whether the on-chain prices need an update.
// Inbound adapters (SQS worker, HTTP handler, CLI) call these methods.
type PriceUpdater interface {
	// Run executes one invocation. It never fails; errors are reported as a
	// Decision that cannot execute.
	Run(ctx context.Context, inv Invocation) entity.Decision

	// Reset deletes the persisted state of the deployment and returns the
	// deleted keys.
	Reset(ctx context.Context, inv Invocation) ([]string, error)
}

// HealthChecker defines the interface for services that can report readiness and liveness.
// This enables health checking during rolling deployments, ensuring new instances
// are processing triggers before old ones are terminated.
//
// Implementations:
//   - keeper.Service: ready after the first successful queue poll, healthy if polls keep succeeding
type HealthChecker interface {
	// IsReady returns true when the service is ready to handle traffic.
	// Used by ECS/Kubernetes readiness probes during rolling deployments.
	IsReady() bool

	// IsHealthy returns true when the service is operating normally.
	// Used by ECS/Kubernetes liveness probes to detect stuck services.
	IsHealthy() bool
}
