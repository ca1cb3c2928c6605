// Package sns implements the DecisionSink interface using AWS SNS.
//
// Every invocation decision is published as JSON to one topic, where a
// transaction submitter or alerting can subscribe.
//
// Message Attributes:
//   - canExec: "true" or "false"
//   - callCount: number of recommended calls
//
// FIFO topics (ARN ending in ".fifo") are grouped by MessageGroupID and
// deduplicated by invocation id.
//
// For testing, use the memory.DecisionSink adapter instead.
package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/archon-research/stl/pyth-keeper/internal/pkg/retry"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

// Compile-time check that DecisionSink implements outbound.DecisionSink
var _ outbound.DecisionSink = (*DecisionSink)(nil)

// SNSPublisher defines the subset of SNS client methods used by DecisionSink.
// This interface allows for easy mocking in tests.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Config holds configuration for the SNS decision sink.
type Config struct {
	// TopicARN is the topic decisions are published to.
	TopicARN string

	// MessageGroupID is used for FIFO topics. Defaults to "pyth-keeper".
	MessageGroupID string

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int

	// InitialBackoff is the initial delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each retry.
	BackoffFactor float64

	// Logger is the structured logger for the sink.
	Logger *slog.Logger
}

// ConfigDefaults returns a config with default values.
func ConfigDefaults() Config {
	return Config{
		MessageGroupID: "pyth-keeper",
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Logger:         slog.Default(),
	}
}

// DecisionSink publishes decisions to AWS SNS.
type DecisionSink struct {
	client    SNSPublisher
	config    Config
	fifo      bool
	logger    *slog.Logger
	closeOnce sync.Once
	closed    bool
	mu        sync.RWMutex
}

// NewDecisionSink creates a new SNS decision sink.
func NewDecisionSink(client SNSPublisher, config Config) (*DecisionSink, error) {
	if client == nil {
		return nil, errors.New("sns client is required")
	}
	if config.TopicARN == "" {
		return nil, errors.New("topic ARN is required")
	}

	// Apply defaults for unset values
	defaults := ConfigDefaults()
	if config.MessageGroupID == "" {
		config.MessageGroupID = defaults.MessageGroupID
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = defaults.BackoffFactor
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &DecisionSink{
		client: client,
		config: config,
		fifo:   strings.HasSuffix(config.TopicARN, ".fifo"),
		logger: config.Logger.With("component", "sns-decision-sink"),
	}, nil
}

// Publish publishes a decision event to SNS.
func (s *DecisionSink) Publish(ctx context.Context, event outbound.DecisionEvent) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errors.New("decision sink is closed")
	}
	s.mu.RUnlock()

	messageBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Build message attributes for filtering
	attributes := map[string]types.MessageAttributeValue{
		"canExec": {
			DataType:    aws.String("String"),
			StringValue: aws.String(strconv.FormatBool(event.Decision.CanExec)),
		},
		"callCount": {
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.Itoa(len(event.Decision.CallData))),
		},
	}

	input := &sns.PublishInput{
		TopicArn:          aws.String(s.config.TopicARN),
		Message:           aws.String(string(messageBytes)),
		MessageAttributes: attributes,
	}
	if s.fifo {
		input.MessageGroupId = aws.String(s.config.MessageGroupID)
		input.MessageDeduplicationId = aws.String(event.InvocationID)
	}

	retryCfg := retry.Config{
		MaxRetries:     s.config.MaxRetries,
		InitialBackoff: s.config.InitialBackoff,
		MaxBackoff:     s.config.MaxBackoff,
		BackoffFactor:  s.config.BackoffFactor,
	}
	onRetry := func(attempt int, err error, backoff time.Duration) {
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"maxRetries", s.config.MaxRetries,
			"backoff", backoff,
			"error", err,
			"invocationId", event.InvocationID,
		)
	}

	err = retry.DoVoid(ctx, retryCfg, isRetryableError, onRetry, func() error {
		_, err := s.client.Publish(ctx, input)
		return err
	})
	if err != nil {
		s.logger.Error("failed to publish decision", "error", err, "invocationId", event.InvocationID)
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	return nil
}

// isRetryableError determines if an error should trigger a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Configuration errors will not go away on retry
	var notFound *types.NotFoundException
	if errors.As(err, &notFound) {
		return false
	}
	var authErr *types.AuthorizationErrorException
	if errors.As(err, &authErr) {
		return false
	}
	var invalidParam *types.InvalidParameterException
	if errors.As(err, &invalidParam) {
		return false
	}

	// Throttling, internal errors and network issues are retried
	return true
}

// Close marks the sink as closed and prevents further publishing.
func (s *DecisionSink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.logger.Info("SNS decision sink closed")
	})
	return nil
}
