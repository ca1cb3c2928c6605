// Package outbound defines the outbound port interfaces.
package outbound

import "context"

// MetricsRecorder provides an interface for recording keeper metrics.
// This allows services to record metrics without depending on
// specific telemetry implementations.
type MetricsRecorder interface {
	// RecordDecision records the outcome of one invocation.
	// outcome is "execute", "no_action" or "aborted"; feedsUpdated is the
	// number of feeds included in the update call.
	RecordDecision(ctx context.Context, outcome string, feedsUpdated int)

	// RecordConfigRefresh records a remote config fetch.
	RecordConfigRefresh(ctx context.Context, source string, success bool)
}
