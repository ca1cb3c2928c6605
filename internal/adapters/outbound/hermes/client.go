// Package hermes implements the PriceService port against the Pyth Hermes API.
//
// Both operations hit GET {endpoint}/v2/updates/price/latest. The parsed
// section carries the prices; the binary section carries the signed update
// payloads submitted on chain.
package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/archon-research/stl/pyth-keeper/internal/pkg/httpclient"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ outbound.PriceService = (*Client)(nil)

const latestPath = "/v2/updates/price/latest"

// ClientConfig holds configuration for the Hermes client.
type ClientConfig struct {
	HTTP       httpclient.Config
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ClientConfigDefaults returns a config with default values.
func ClientConfigDefaults() ClientConfig {
	return ClientConfig{
		HTTP:   httpclient.DefaultConfig(),
		Logger: slog.Default(),
	}
}

// Client implements PriceService using Hermes.
type Client struct {
	http   *httpclient.Client
	logger *slog.Logger
}

// NewClient creates a Hermes client.
func NewClient(config ClientConfig) *Client {
	defaults := ClientConfigDefaults()
	if config.HTTP == (httpclient.Config{}) {
		config.HTTP = defaults.HTTP
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	logger := config.Logger.With("component", "hermes-client")
	return &Client{
		http:   httpclient.NewClient(config.HTTP, config.HTTPClient, logger, parseError),
		logger: logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "hermes"
}

// GetLatestPrices returns one observation per parsed entry. Entries without a
// price object become observations without payload.
func (c *Client) GetLatestPrices(ctx context.Context, endpoint string, ids []string) ([]outbound.PriceObservation, error) {
	resp, err := c.latest(ctx, endpoint, ids, false)
	if err != nil {
		return nil, err
	}

	out := make([]outbound.PriceObservation, 0, len(resp.Parsed))
	for _, p := range resp.Parsed {
		obs := outbound.PriceObservation{ID: p.ID}
		if p.Price != nil {
			obs.Payload = &outbound.PricePayload{
				Price:       p.Price.Price,
				Conf:        p.Price.Conf,
				Expo:        p.Price.Expo,
				PublishTime: p.Price.PublishTime,
			}
		}
		out = append(out, obs)
	}

	c.logger.Debug("fetched latest prices", "requested", len(ids), "received", len(out))
	return out, nil
}

// GetUpdateData returns the decoded binary update payloads for ids.
func (c *Client) GetUpdateData(ctx context.Context, endpoint string, ids []string) ([][]byte, error) {
	resp, err := c.latest(ctx, endpoint, ids, true)
	if err != nil {
		return nil, err
	}
	if enc := resp.Binary.Encoding; enc != "" && enc != "hex" {
		return nil, fmt.Errorf("unexpected update encoding %q", enc)
	}

	out := make([][]byte, 0, len(resp.Binary.Data))
	for i, raw := range resp.Binary.Data {
		if !strings.HasPrefix(raw, "0x") {
			raw = "0x" + raw
		}
		b, err := hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding update data[%d]: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *Client) latest(ctx context.Context, endpoint string, ids []string, binary bool) (*latestPriceResponse, error) {
	if len(ids) == 0 {
		return nil, errors.New("no feed ids requested")
	}
	if endpoint == "" {
		return nil, errors.New("endpoint is empty")
	}

	query := url.Values{}
	for _, id := range ids {
		query.Add("ids[]", id)
	}
	query.Set("encoding", "hex")
	query.Set("parsed", "true")
	if !binary {
		query.Set("ignore_invalid_price_ids", "true")
	}

	var resp latestPriceResponse
	err := c.http.GetJSON(ctx, httpclient.Request{
		URL:   strings.TrimRight(endpoint, "/") + latestPath,
		Query: query,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("hermes latest prices: %w", err)
	}
	return &resp, nil
}

func parseError(status int, body []byte) error {
	if status < 400 {
		return nil
	}
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return fmt.Errorf("hermes error (HTTP %d): %s", status, e.Message)
	}
	if msg := strings.TrimSpace(string(body)); msg != "" && len(msg) < 512 {
		return fmt.Errorf("hermes error (HTTP %d): %s", status, msg)
	}
	return nil
}
