package keeper

import (
	"context"
	"errors"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ outbound.DecisionSink = MultiSink(nil)

// MultiSink publishes every event to each sink in order. All sinks are
// attempted; their errors are joined.
type MultiSink []outbound.DecisionSink

func (m MultiSink) Publish(ctx context.Context, event outbound.DecisionEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
