// Package configsource provides config sources addressed by URL and a router
// that dispatches a config source id to the matching backend.
package configsource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/configdoc"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/httpclient"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ outbound.ConfigSource = (*URLSource)(nil)

// URLSource fetches the config document with a plain GET.
type URLSource struct {
	http   *httpclient.Client
	logger *slog.Logger
}

// NewURLSource creates a URLSource. A zero cfg uses httpclient.DefaultConfig.
func NewURLSource(cfg httpclient.Config, httpClient *http.Client, logger *slog.Logger) *URLSource {
	if cfg == (httpclient.Config{}) {
		cfg = httpclient.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "url-config-source")
	return &URLSource{
		http:   httpclient.NewClient(cfg, httpClient, logger, nil),
		logger: logger,
	}
}

// Name returns the source name.
func (s *URLSource) Name() string {
	return "url"
}

// FetchConfig fetches and parses the document at id, an absolute http(s) URL.
func (s *URLSource) FetchConfig(ctx context.Context, id string) (*entity.OracleConfig, error) {
	u, err := url.Parse(id)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid config url %q", id)
	}

	body, err := s.http.Get(ctx, httpclient.Request{URL: id})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u.Redacted(), err)
	}

	cfg, err := configdoc.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u.Redacted(), err)
	}

	s.logger.Debug("fetched config", "url", u.Redacted(), "feeds", len(cfg.FeedIDs))
	return cfg, nil
}
