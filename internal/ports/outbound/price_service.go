package outbound

import "context"

// PricePayload is the raw price attached to an observation, as reported by the
// price service. Numeric values are decimal strings and are validated by the caller.
type PricePayload struct {
	Price       string
	Conf        string
	Expo        int32
	PublishTime int64
}

// PriceObservation is one feed returned by the price service.
// A nil Payload means the service knows the feed but has no price for it.
type PriceObservation struct {
	// ID is the feed identifier in whatever form the service returned it.
	ID      string
	Payload *PricePayload
}

// HasPrice reports whether the observation carries a price.
func (o PriceObservation) HasPrice() bool {
	return o.Payload != nil
}

// PriceService is the interface for the remote signed-price service.
type PriceService interface {
	// Name returns the provider name (e.g., "hermes").
	Name() string

	// GetLatestPrices fetches the latest observation for each id in one batch call.
	GetLatestPrices(ctx context.Context, endpoint string, ids []string) ([]PriceObservation, error)

	// GetUpdateData fetches the signed update payloads to submit on chain for ids.
	GetUpdateData(ctx context.Context, endpoint string, ids []string) ([][]byte, error)
}
