package shared

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	sums := make(map[string]metricdata.Sum[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				sums[m.Name] = sum
			}
		}
	}
	return sums
}

func TestAppTelemetry_RecordDecision(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tel, err := NewAppTelemetryWithProvider(provider)
	if err != nil {
		t.Fatalf("NewAppTelemetryWithProvider: %v", err)
	}

	ctx := context.Background()
	tel.RecordDecision(ctx, "execute", 2)
	tel.RecordDecision(ctx, "execute", 1)
	tel.RecordDecision(ctx, "no_action", 0)

	sums := collect(t, reader)

	decisions := sums["keeper.decisions.total"]
	byOutcome := make(map[string]int64)
	for _, dp := range decisions.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("decision.outcome"))
		byOutcome[outcome.AsString()] = dp.Value
	}
	if byOutcome["execute"] != 2 || byOutcome["no_action"] != 1 {
		t.Errorf("decisions by outcome = %v", byOutcome)
	}

	feeds := sums["keeper.feeds_updated.total"]
	if len(feeds.DataPoints) != 1 || feeds.DataPoints[0].Value != 3 {
		t.Errorf("feeds updated = %+v, want 3", feeds.DataPoints)
	}
}

func TestAppTelemetry_RecordConfigRefresh(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tel, err := NewAppTelemetryWithProvider(provider)
	if err != nil {
		t.Fatalf("NewAppTelemetryWithProvider: %v", err)
	}

	tel.RecordConfigRefresh(context.Background(), "gist", true)
	tel.RecordConfigRefresh(context.Background(), "gist", false)

	refreshes := collect(t, reader)["keeper.config_refreshes.total"]
	if len(refreshes.DataPoints) != 2 {
		t.Fatalf("data points = %d, want 2", len(refreshes.DataPoints))
	}
}

func TestNewAppTelemetry_GlobalProvider(t *testing.T) {
	if _, err := NewAppTelemetry(); err != nil {
		t.Fatalf("NewAppTelemetry: %v", err)
	}
}
