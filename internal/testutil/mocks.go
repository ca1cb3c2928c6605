package testutil

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

// MockConfigSource implements outbound.ConfigSource.
type MockConfigSource struct {
	mu      sync.Mutex
	FetchFn func(ctx context.Context, id string) (*entity.OracleConfig, error)
	// Label overrides the name returned by Name.
	Label string
	calls []string
}

func (m *MockConfigSource) Name() string {
	if m.Label != "" {
		return m.Label
	}
	return "mock"
}

func (m *MockConfigSource) FetchConfig(ctx context.Context, id string) (*entity.OracleConfig, error) {
	m.mu.Lock()
	m.calls = append(m.calls, id)
	m.mu.Unlock()
	if m.FetchFn != nil {
		return m.FetchFn(ctx, id)
	}
	return nil, nil
}

// Calls returns the ids FetchConfig was called with.
func (m *MockConfigSource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockPriceService implements outbound.PriceService.
type MockPriceService struct {
	mu                sync.Mutex
	GetLatestPricesFn func(ctx context.Context, endpoint string, ids []string) ([]outbound.PriceObservation, error)
	GetUpdateDataFn   func(ctx context.Context, endpoint string, ids []string) ([][]byte, error)
	LatestCalls       [][]string
	UpdateDataCalls   [][]string
}

func (m *MockPriceService) Name() string { return "mock" }

func (m *MockPriceService) GetLatestPrices(ctx context.Context, endpoint string, ids []string) ([]outbound.PriceObservation, error) {
	m.mu.Lock()
	m.LatestCalls = append(m.LatestCalls, append([]string(nil), ids...))
	m.mu.Unlock()
	if m.GetLatestPricesFn != nil {
		return m.GetLatestPricesFn(ctx, endpoint, ids)
	}
	return nil, nil
}

func (m *MockPriceService) GetUpdateData(ctx context.Context, endpoint string, ids []string) ([][]byte, error) {
	m.mu.Lock()
	m.UpdateDataCalls = append(m.UpdateDataCalls, append([]string(nil), ids...))
	m.mu.Unlock()
	if m.GetUpdateDataFn != nil {
		return m.GetUpdateDataFn(ctx, endpoint, ids)
	}
	return [][]byte{{0x01}}, nil
}

// MockFeeQuoter implements outbound.UpdateFeeQuoter.
type MockFeeQuoter struct {
	mu    sync.Mutex
	Fee   *big.Int
	Err   error
	Calls int
}

func (m *MockFeeQuoter) GetUpdateFee(_ context.Context, _ common.Address, _ [][]byte) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Fee == nil {
		return big.NewInt(1), nil
	}
	return new(big.Int).Set(m.Fee), nil
}

// MockMetrics implements outbound.MetricsRecorder.
type MockMetrics struct {
	mu        sync.Mutex
	Decisions map[string]int
	Refreshes map[bool]int
	// RefreshSources lists the source label of every recorded refresh.
	RefreshSources []string
}

func (m *MockMetrics) RecordDecision(_ context.Context, outcome string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Decisions == nil {
		m.Decisions = make(map[string]int)
	}
	m.Decisions[outcome]++
}

func (m *MockMetrics) RecordConfigRefresh(_ context.Context, source string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Refreshes == nil {
		m.Refreshes = make(map[bool]int)
	}
	m.Refreshes[success]++
	m.RefreshSources = append(m.RefreshSources, source)
}

// Observation builds a price observation for id with the given price and publish time.
func Observation(id string, price string, publishTime int64) outbound.PriceObservation {
	return outbound.PriceObservation{
		ID: id,
		Payload: &outbound.PricePayload{
			Price:       price,
			Conf:        "0",
			Expo:        -8,
			PublishTime: publishTime,
		},
	}
}

var (
	_ outbound.ConfigSource    = (*MockConfigSource)(nil)
	_ outbound.PriceService    = (*MockPriceService)(nil)
	_ outbound.UpdateFeeQuoter = (*MockFeeQuoter)(nil)
	_ outbound.MetricsRecorder = (*MockMetrics)(nil)
)
