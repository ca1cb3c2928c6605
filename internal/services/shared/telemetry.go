// Package shared provides instrumentation shared by the keeper services.
package shared

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

// Compile-time assertion that AppTelemetry implements MetricsRecorder.
var _ outbound.MetricsRecorder = (*AppTelemetry)(nil)

const (
	// instrumentationName is the name used for OpenTelemetry instrumentation.
	instrumentationName = "github.com/archon-research/stl/pyth-keeper/internal/services"
)

// AppTelemetry provides OpenTelemetry metrics for keeper decisions.
type AppTelemetry struct {
	meter metric.Meter

	decisionsTotal       metric.Int64Counter
	feedsUpdatedTotal    metric.Int64Counter
	configRefreshesTotal metric.Int64Counter
}

// NewAppTelemetry creates a new AppTelemetry instance with OpenTelemetry instrumentation.
// Uses the global meter provider by default.
func NewAppTelemetry() (*AppTelemetry, error) {
	return NewAppTelemetryWithProvider(otel.GetMeterProvider())
}

// NewAppTelemetryWithProvider creates a new AppTelemetry instance with a custom meter provider.
func NewAppTelemetryWithProvider(mp metric.MeterProvider) (*AppTelemetry, error) {
	meter := mp.Meter(instrumentationName)

	t := &AppTelemetry{
		meter: meter,
	}

	var err error

	t.decisionsTotal, err = meter.Int64Counter(
		"keeper.decisions.total",
		metric.WithDescription("Total number of invocation decisions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	t.feedsUpdatedTotal, err = meter.Int64Counter(
		"keeper.feeds_updated.total",
		metric.WithDescription("Total number of feeds included in recommended update calls"),
	)
	if err != nil {
		return nil, err
	}

	t.configRefreshesTotal, err = meter.Int64Counter(
		"keeper.config_refreshes.total",
		metric.WithDescription("Total number of remote config fetches"),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// RecordDecision records the outcome of one invocation.
func (t *AppTelemetry) RecordDecision(ctx context.Context, outcome string, feedsUpdated int) {
	t.decisionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision.outcome", outcome),
	))
	if feedsUpdated > 0 {
		t.feedsUpdatedTotal.Add(ctx, int64(feedsUpdated))
	}
}

// RecordConfigRefresh records a remote config fetch.
func (t *AppTelemetry) RecordConfigRefresh(ctx context.Context, source string, success bool) {
	t.configRefreshesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("config.source", source),
		attribute.Bool("config.success", success),
	))
}
