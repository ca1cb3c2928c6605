// Package httpclient provides a shared JSON-over-HTTP client with retry and rate limiting.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/archon-research/stl/pyth-keeper/internal/pkg/retry"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 4 << 20

// Config holds the configuration for the HTTP client.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	RateLimit      rate.Limit
	RateBurst      int
	UserAgent      string
}

// DefaultConfig returns defaults sized for one keeper invocation: a few
// quick retries, never longer than a scheduler tick.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.0,
		RateLimit:      rate.Limit(10),
		RateBurst:      5,
		UserAgent:      "pyth-keeper",
	}
}

// Request describes one GET request.
type Request struct {
	URL     string
	Query   url.Values
	Headers map[string]string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

// ErrorParser turns an API-specific error body into an error, or returns nil.
type ErrorParser func(statusCode int, body []byte) error

// Client wraps an HTTP client with retry logic and rate limiting.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryConfig retry.Config
	userAgent   string
	logger      *slog.Logger
	errorParser ErrorParser
}

// NewClient creates a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger, errorParser ErrorParser) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if errorParser == nil {
		errorParser = func(int, []byte) error { return nil }
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = rate.Inf
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		retryConfig: retry.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			BackoffFactor:  cfg.BackoffFactor,
			Jitter:         true,
		},
		userAgent:   cfg.UserAgent,
		logger:      logger,
		errorParser: errorParser,
	}
}

// GetJSON performs a GET and decodes the JSON body into result.
func (c *Client) GetJSON(ctx context.Context, req Request, result any) error {
	body, err := c.Get(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// Get performs a GET and returns the raw body. 429 and 5xx responses and
// transport errors are retried; other 4xx responses are not.
func (c *Client) Get(ctx context.Context, req Request) ([]byte, error) {
	target, err := buildURL(req)
	if err != nil {
		return nil, err
	}

	onRetry := func(attempt int, err error, backoff time.Duration) {
		c.logger.Warn("request failed, retrying",
			"url", req.URL,
			"attempt", attempt,
			"maxRetries", c.retryConfig.MaxRetries,
			"backoff", backoff,
			"error", err,
		)
	}

	return retry.Do(ctx, c.retryConfig, nil, onRetry, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
		return c.doSingleRequest(ctx, target, req.Headers)
	})
}

func (c *Client) doSingleRequest(ctx context.Context, target string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, retry.Permanent(err)
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, &StatusError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		if apiErr := c.errorParser(resp.StatusCode, body); apiErr != nil {
			return nil, retry.Permanent(apiErr)
		}
		return nil, retry.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)})
	}

	if apiErr := c.errorParser(resp.StatusCode, body); apiErr != nil {
		return nil, retry.Permanent(apiErr)
	}
	return body, nil
}

func buildURL(req Request) (string, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", req.URL, err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
