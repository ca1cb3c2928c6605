package update_orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/services/config_cache"
)

// Reset deletes every key the keeper owns: the record of each configured
// feed, the cached config and the legacy single-feed key. The next Run
// bootstraps every feed.
//
// A corrupt cached config is dropped first so the feed set can be reloaded
// from the config source.
func (s *Service) Reset(ctx context.Context, inv Invocation) ([]string, error) {
	if inv.Storage == nil {
		return nil, errors.New("invocation has no storage")
	}

	sourceID, err := resolveSourceID(ctx, inv)
	if err != nil {
		return nil, err
	}

	cfg, err := s.cache.EnsureConfig(ctx, inv.Storage, sourceID)
	var mse *entity.MalformedStateError
	if errors.As(err, &mse) {
		s.logger.Warn("dropping corrupt cached config before reset", "error", err)
		if delErr := inv.Storage.Delete(ctx, config_cache.StorageKey); delErr != nil {
			return nil, &entity.StorageError{Op: "delete", Key: config_cache.StorageKey, Err: delErr}
		}
		cfg, err = s.cache.EnsureConfig(ctx, inv.Storage, sourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config for reset: %w", err)
	}

	keys := append(entity.FeedIDHexes(cfg.FeedIDs), config_cache.StorageKey, LegacyLastPriceKey)

	var (
		deleted []string
		errs    []error
	)
	for _, key := range keys {
		if err := inv.Storage.Delete(ctx, key); err != nil {
			errs = append(errs, &entity.StorageError{Op: "delete", Key: key, Err: err})
			continue
		}
		deleted = append(deleted, key)
	}

	s.logger.Info("reset persisted state", "deleted", len(deleted), "failed", len(errs))
	return deleted, errors.Join(errs...)
}
