// Package price_normalizer turns price service observations into canonical
// PriceRecords keyed by FeedID.
package price_normalizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

// Normalizer fetches and normalizes current prices.
type Normalizer struct {
	service outbound.PriceService
	logger  *slog.Logger
}

// New creates a Normalizer.
func New(service outbound.PriceService, logger *slog.Logger) (*Normalizer, error) {
	if service == nil {
		return nil, fmt.Errorf("price service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		service: service,
		logger:  logger.With("component", "price-normalizer"),
	}, nil
}

// FetchCurrent queries the price service once for ids and returns a record for
// every feed that came back with a usable price.
//
// Observations without a payload, with an unparsable payload, or for feeds that
// were not requested are left out of the result; the caller compares the result
// size against the request. A failed remote call returns *entity.PriceFetchError.
func (n *Normalizer) FetchCurrent(ctx context.Context, ids []entity.FeedID, endpoint string) (map[entity.FeedID]entity.PriceRecord, error) {
	requested := make(map[entity.FeedID]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}

	observations, err := n.service.GetLatestPrices(ctx, endpoint, entity.FeedIDHexes(ids))
	if err != nil {
		return nil, &entity.PriceFetchError{Endpoint: endpoint, Err: err}
	}

	result := make(map[entity.FeedID]entity.PriceRecord, len(ids))
	for _, obs := range observations {
		if !obs.HasPrice() {
			n.logger.Debug("observation has no price", "feed", obs.ID)
			continue
		}

		id, err := entity.ParseFeedID(obs.ID)
		if err != nil {
			n.logger.Warn("dropping observation with invalid feed id", "feed", obs.ID, "error", err)
			continue
		}
		if !requested[id] {
			n.logger.Warn("dropping unrequested observation", "feed", id)
			continue
		}

		rec, err := entity.ParsePriceRecord(obs.Payload.Price, obs.Payload.Conf, obs.Payload.Expo, obs.Payload.PublishTime)
		if err != nil {
			n.logger.Warn("dropping malformed observation", "feed", id, "error", err)
			continue
		}

		// Keep the newest observation if the service repeats a feed.
		if prev, ok := result[id]; ok && prev.PublishTime() >= rec.PublishTime() {
			continue
		}
		result[id] = rec
	}

	return result, nil
}
