// Package keeper provides an SQS consumer that runs one price update
// invocation per trigger message and publishes the resulting decision.
package keeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/inbound"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ inbound.HealthChecker = (*Service)(nil)

// Config holds configuration for the keeper worker.
type Config struct {
	MaxMessages  int
	PollInterval time.Duration

	// MaxReceiveCount drops a trigger that the queue has already delivered
	// more often than this. Zero disables the check.
	MaxReceiveCount int

	// MaxTriggerAge skips triggers whose requestedAt is older than this.
	// Zero disables the check.
	MaxTriggerAge time.Duration

	// HealthTimeout is how long the worker stays healthy without a
	// successful poll.
	HealthTimeout time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

func configDefaults() Config {
	return Config{
		MaxMessages:     10,
		PollInterval:    100 * time.Millisecond,
		MaxReceiveCount: 5,
		HealthTimeout:   5 * time.Minute,
		Now:             time.Now,
		Logger:          slog.Default(),
	}
}

// trigger is the SQS message payload. Every field is optional.
type trigger struct {
	ConfigSource string `json:"configSource,omitempty"`
	RequestedAt  int64  `json:"requestedAt,omitempty"`
}

// Service consumes keeper triggers and publishes decisions.
type Service struct {
	config   Config
	consumer outbound.SQSConsumer
	updater  inbound.PriceUpdater
	storage  outbound.KVStore
	secrets  outbound.SecretStore
	sink     outbound.DecisionSink

	// Unix nanoseconds of the last successful receive; zero before the first.
	lastPoll atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// NewService creates a new keeper worker.
func NewService(
	config Config,
	consumer outbound.SQSConsumer,
	updater inbound.PriceUpdater,
	storage outbound.KVStore,
	secrets outbound.SecretStore,
	sink outbound.DecisionSink,
) (*Service, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer cannot be nil")
	}
	if updater == nil {
		return nil, fmt.Errorf("updater cannot be nil")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("decision sink cannot be nil")
	}

	defaults := configDefaults()
	if config.MaxMessages == 0 {
		config.MaxMessages = defaults.MaxMessages
	}
	if config.PollInterval == 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxReceiveCount == 0 {
		config.MaxReceiveCount = defaults.MaxReceiveCount
	}
	if config.HealthTimeout == 0 {
		config.HealthTimeout = defaults.HealthTimeout
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Service{
		config:   config,
		consumer: consumer,
		updater:  updater,
		storage:  storage,
		secrets:  secrets,
		sink:     sink,
		logger:   config.Logger.With("component", "keeper"),
	}, nil
}

// Start begins processing SQS messages.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.processLoop()

	s.logger.Info("keeper started",
		"maxMessages", s.config.MaxMessages,
		"pollInterval", s.config.PollInterval)
	return nil
}

// Stop stops the service and waits for the in-flight batch to finish.
func (s *Service) Stop() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.logger.Info("keeper stopped")
	return nil
}

// IsReady reports whether the worker has polled the queue at least once.
func (s *Service) IsReady() bool {
	return s.lastPoll.Load() != 0
}

// IsHealthy reports whether the worker polled the queue within HealthTimeout.
func (s *Service) IsHealthy() bool {
	last := s.lastPoll.Load()
	if last == 0 {
		return false
	}
	return s.config.Now().Sub(time.Unix(0, last)) <= s.config.HealthTimeout
}

func (s *Service) processLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.processMessages(s.ctx); err != nil {
				s.logger.Error("error processing messages", "error", err)
			}
		}
	}
}

func (s *Service) processMessages(ctx context.Context) error {
	messages, err := s.consumer.ReceiveMessages(ctx, s.config.MaxMessages)
	if err != nil {
		return fmt.Errorf("receiving messages: %w", err)
	}
	s.lastPoll.Store(s.config.Now().UnixNano())

	if len(messages) == 0 {
		return nil
	}

	s.logger.Info("received messages", "count", len(messages))

	var errs []error
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if err := s.processMessage(ctx, msg); err != nil {
			s.logger.Error("failed to process message", "messageId", msg.MessageID, "error", err)
			errs = append(errs, err)
			continue
		}

		if deleteErr := s.consumer.DeleteMessage(ctx, msg.ReceiptHandle); deleteErr != nil {
			s.logger.Error("failed to delete message", "messageId", msg.MessageID, "error", deleteErr)
		}
	}

	return errors.Join(errs...)
}

// processMessage runs one invocation for msg. A nil return deletes the
// message; an error leaves it on the queue for redelivery.
func (s *Service) processMessage(ctx context.Context, msg outbound.SQSMessage) error {
	logger := s.logger.With("messageId", msg.MessageID)

	if s.config.MaxReceiveCount > 0 && msg.ReceiveCount > s.config.MaxReceiveCount {
		logger.Warn("dropping trigger after too many deliveries", "receiveCount", msg.ReceiveCount)
		return nil
	}

	t, err := parseTrigger(msg.Body)
	if err != nil {
		logger.Warn("dropping malformed trigger", "error", err)
		return nil
	}

	now := s.config.Now()
	if s.config.MaxTriggerAge > 0 && t.RequestedAt > 0 {
		if age := now.Sub(time.Unix(t.RequestedAt, 0)); age > s.config.MaxTriggerAge {
			logger.Info("skipping expired trigger", "age", age)
			return nil
		}
	}

	inv := inbound.Invocation{
		Storage: s.storage,
		Secrets: s.secrets,
	}
	if t.ConfigSource != "" {
		inv.UserArgs = map[string]any{"configSource": t.ConfigSource}
	}

	decision := s.updater.Run(ctx, inv)
	logger.Info("invocation finished", "canExec", decision.CanExec, "calls", len(decision.CallData))

	event := outbound.DecisionEvent{
		InvocationID: msg.MessageID,
		Decision:     decision,
		DecidedAt:    s.config.Now().UTC(),
	}
	if err := s.sink.Publish(ctx, event); err != nil {
		return fmt.Errorf("publishing decision for %s: %w", msg.MessageID, err)
	}
	return nil
}

func parseTrigger(body string) (trigger, error) {
	var t trigger
	if strings.TrimSpace(body) == "" {
		return t, nil
	}
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return t, fmt.Errorf("parsing trigger: %w", err)
	}
	if t.RequestedAt < 0 {
		return t, fmt.Errorf("negative requestedAt %d", t.RequestedAt)
	}
	return t, nil
}
