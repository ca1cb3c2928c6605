package hermes

// latestPriceResponse is the body of GET /v2/updates/price/latest.
type latestPriceResponse struct {
	Binary binaryUpdate  `json:"binary"`
	Parsed []parsedPrice `json:"parsed"`
}

type binaryUpdate struct {
	Encoding string   `json:"encoding"`
	Data     []string `json:"data"`
}

type parsedPrice struct {
	ID       string     `json:"id"`
	Price    *priceInfo `json:"price"`
	EMAPrice *priceInfo `json:"ema_price"`
}

type priceInfo struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

// errorResponse is returned by Hermes for 4xx responses.
type errorResponse struct {
	Message string `json:"message"`
}
