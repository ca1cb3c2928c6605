// Package config_cache keeps the oracle config fresh without refetching it on
// every invocation.
//
// The cached config lives in the invocation's key-value store under
// StorageKey as {"timestamp": <unix seconds>, "pythConfig": <document>}.
// A cached config is reused until it is older than its own
// configRefreshRateInSeconds, so remote fetches are bounded to roughly one
// per refresh interval regardless of how often the keeper runs.
package config_cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/configdoc"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

// StorageKey is the key holding the cached config.
const StorageKey = "pythConfig"

// Config holds configuration for the cache.
type Config struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func configDefaults() Config {
	return Config{
		Now:    time.Now,
		Logger: slog.Default(),
	}
}

// Cache resolves the oracle config for an invocation.
type Cache struct {
	source  outbound.ConfigSource
	metrics outbound.MetricsRecorder
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Cache. metrics may be nil.
func New(config Config, source outbound.ConfigSource, metrics outbound.MetricsRecorder) (*Cache, error) {
	if source == nil {
		return nil, fmt.Errorf("config source cannot be nil")
	}

	defaults := configDefaults()
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Cache{
		source:  source,
		metrics: metrics,
		now:     config.Now,
		logger:  config.Logger.With("component", "config-cache"),
	}, nil
}

// cachedConfig is the stored form of the cache slot.
type cachedConfig struct {
	Timestamp  int64              `json:"timestamp"`
	PythConfig configdoc.Document `json:"pythConfig"`
}

// EnsureConfig returns a config that is at most one refresh interval old.
//
// Errors:
//   - *entity.StorageError when the store cannot be read or written
//   - *entity.MalformedStateError when the cached slot exists but cannot be decoded
//   - *entity.ConfigFetchError when a required refresh fails
func (c *Cache) EnsureConfig(ctx context.Context, store outbound.KVStore, sourceID string) (*entity.OracleConfig, error) {
	raw, ok, err := store.Get(ctx, StorageKey)
	if err != nil {
		return nil, &entity.StorageError{Op: "get", Key: StorageKey, Err: err}
	}

	now := c.now()

	if ok {
		cached, fetchedAt, err := decode(raw)
		if err != nil {
			return nil, &entity.MalformedStateError{Key: StorageKey, Err: err}
		}

		// A timestamp ahead of our clock comes from a skewed writer; trusting it
		// would keep the config fresh until the clocks meet.
		age := now.Sub(fetchedAt)
		if age >= 0 && age <= cached.RefreshInterval() {
			c.logger.Debug("using cached config", "age", age, "refreshInterval", cached.RefreshInterval())
			return cached, nil
		}
		c.logger.Info("cached config expired", "age", age, "refreshInterval", cached.RefreshInterval())
	}

	return c.refresh(ctx, store, sourceID, now)
}

func (c *Cache) refresh(ctx context.Context, store outbound.KVStore, sourceID string, now time.Time) (*entity.OracleConfig, error) {
	cfg, err := c.fetch(ctx, sourceID)
	c.recordRefresh(ctx, sourceID, err == nil)
	if err != nil {
		return nil, &entity.ConfigFetchError{SourceID: sourceID, Err: err}
	}

	data, err := json.Marshal(cachedConfig{
		Timestamp:  now.Unix(),
		PythConfig: configdoc.FromConfig(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding cached config: %w", err)
	}

	if err := store.Set(ctx, StorageKey, string(data)); err != nil {
		return nil, &entity.StorageError{Op: "set", Key: StorageKey, Err: err}
	}

	c.logger.Info("config refreshed",
		"source", c.sourceName(sourceID),
		"feeds", len(cfg.FeedIDs),
		"refreshIntervalSeconds", cfg.RefreshIntervalSeconds,
		"validPeriodSeconds", cfg.ValidPeriodSeconds,
		"deviationThresholdBps", cfg.DeviationThresholdBps)
	return cfg, nil
}

func (c *Cache) fetch(ctx context.Context, sourceID string) (*entity.OracleConfig, error) {
	if sourceID == "" {
		return nil, errors.New("config source id is empty")
	}

	cfg, err := c.source.FetchConfig(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errors.New("config source returned no config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Cache) recordRefresh(ctx context.Context, sourceID string, success bool) {
	if c.metrics != nil {
		c.metrics.RecordConfigRefresh(ctx, c.sourceName(sourceID), success)
	}
}

// sourceName names the source serving sourceID, looking through routers.
func (c *Cache) sourceName(sourceID string) string {
	if r, ok := c.source.(outbound.SourceRouter); ok {
		if src, err := r.Route(sourceID); err == nil {
			return src.Name()
		}
	}
	return c.source.Name()
}

func decode(raw string) (*entity.OracleConfig, time.Time, error) {
	var slot struct {
		Timestamp  *int64          `json:"timestamp"`
		PythConfig json.RawMessage `json:"pythConfig"`
	}
	if err := json.Unmarshal([]byte(raw), &slot); err != nil {
		return nil, time.Time{}, err
	}
	if slot.Timestamp == nil {
		return nil, time.Time{}, errors.New("missing timestamp")
	}
	if len(slot.PythConfig) == 0 {
		return nil, time.Time{}, errors.New("missing pythConfig")
	}

	cfg, err := configdoc.ParseJSON(slot.PythConfig)
	if err != nil {
		return nil, time.Time{}, err
	}
	return cfg, time.Unix(*slot.Timestamp, 0), nil
}
