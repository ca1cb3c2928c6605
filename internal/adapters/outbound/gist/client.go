// Package gist implements the ConfigSource port on top of GitHub gists.
//
// The config document is the file named config.yaml in the gist. Large files
// are truncated by the gists API; those are fetched again through raw_url.
package gist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/configdoc"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/httpclient"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ outbound.ConfigSource = (*Client)(nil)

// DefaultFileName is the gist file holding the config document.
const DefaultFileName = "config.yaml"

// ClientConfig holds configuration for the gist client.
type ClientConfig struct {
	// BaseURL is the GitHub API base URL. Defaults to https://api.github.com.
	BaseURL string

	// FileName is the gist file to read. Defaults to config.yaml.
	FileName string

	// Token is an optional GitHub token, raising the API rate limit.
	Token string

	HTTP       httpclient.Config
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ClientConfigDefaults returns a config with default values.
func ClientConfigDefaults() ClientConfig {
	return ClientConfig{
		BaseURL:  "https://api.github.com",
		FileName: DefaultFileName,
		HTTP:     httpclient.DefaultConfig(),
		Logger:   slog.Default(),
	}
}

// Client fetches config documents from gists.
type Client struct {
	config ClientConfig
	http   *httpclient.Client
	logger *slog.Logger
}

// NewClient creates a gist client.
func NewClient(config ClientConfig) *Client {
	defaults := ClientConfigDefaults()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.FileName == "" {
		config.FileName = defaults.FileName
	}
	if config.HTTP == (httpclient.Config{}) {
		config.HTTP = defaults.HTTP
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	logger := config.Logger.With("component", "gist-client")
	return &Client{
		config: config,
		http:   httpclient.NewClient(config.HTTP, config.HTTPClient, logger, parseError),
		logger: logger,
	}
}

// Name returns the source name.
func (c *Client) Name() string {
	return "gist"
}

type gistResponse struct {
	Files map[string]*gistFile `json:"files"`
}

type gistFile struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
	RawURL    string `json:"raw_url"`
}

type apiError struct {
	Message string `json:"message"`
}

// FetchConfig fetches and parses the config document of gist id.
func (c *Client) FetchConfig(ctx context.Context, id string) (*entity.OracleConfig, error) {
	content, err := c.fetchContent(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg, err := configdoc.Parse([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("gist %s: %w", id, err)
	}

	c.logger.Debug("fetched config", "gist", id, "feeds", len(cfg.FeedIDs))
	return cfg, nil
}

func (c *Client) fetchContent(ctx context.Context, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", fmt.Errorf("invalid gist id %q", id)
	}

	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if c.config.Token != "" {
		headers["Authorization"] = "Bearer " + c.config.Token
	}

	var resp gistResponse
	err := c.http.GetJSON(ctx, httpclient.Request{
		URL:     strings.TrimRight(c.config.BaseURL, "/") + "/gists/" + id,
		Headers: headers,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("fetching gist %s: %w", id, err)
	}

	file, ok := resp.Files[c.config.FileName]
	if !ok || file == nil {
		return "", fmt.Errorf("gist %s has no file %q", id, c.config.FileName)
	}
	if !file.Truncated {
		return file.Content, nil
	}

	c.logger.Info("gist file truncated, fetching raw content", "gist", id, "file", c.config.FileName)
	raw, err := c.http.Get(ctx, httpclient.Request{URL: file.RawURL})
	if err != nil {
		return "", fmt.Errorf("fetching raw gist file: %w", err)
	}
	return string(raw), nil
}

func parseError(status int, body []byte) error {
	if status < 400 {
		return nil
	}
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return fmt.Errorf("github error (HTTP %d): %s", status, e.Message)
	}
	return nil
}
