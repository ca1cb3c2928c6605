// Package update_orchestrator runs one keeper invocation: it resolves the
// config, fetches current prices, evaluates every tracked feed, persists the
// records of feeds that need an update and builds the outbound call.
//
// Every invocation ends in a Decision. Errors never escape Run; they become a
// "cannot execute" decision with a descriptive message. There is no internal
// retry of the invocation, the scheduler re-invokes on its next tick.
package update_orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/blockchain"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/inbound"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
	"github.com/archon-research/stl/pyth-keeper/internal/services/config_cache"
	"github.com/archon-research/stl/pyth-keeper/internal/services/evaluator"
	"github.com/archon-research/stl/pyth-keeper/internal/services/price_normalizer"
)

const (
	// tracerName is the instrumentation name for this service.
	tracerName = "github.com/archon-research/stl/pyth-keeper/internal/services/update_orchestrator"

	// SecretConfigSource names the secret holding the config source id.
	SecretConfigSource = "GIST_ID"

	// ArgConfigSource is the user argument consulted when the secret is unset.
	ArgConfigSource = "configSource"

	// LegacyLastPriceKey is the single-feed key written by older deployments.
	// Nothing reads it; Reset removes it.
	LegacyLastPriceKey = "lastPrice"
)

// Outcomes reported to the MetricsRecorder.
const (
	OutcomeExecute  = "execute"
	OutcomeNoAction = "no_action"
	OutcomeAborted  = "aborted"
)

// Invocation is the input of one run.
type Invocation = inbound.Invocation

var _ inbound.PriceUpdater = (*Service)(nil)

// Config holds configuration for the orchestrator.
type Config struct {
	// MaxConcurrency bounds the concurrent per-feed storage operations.
	MaxConcurrency int

	Logger *slog.Logger
}

func configDefaults() Config {
	return Config{
		MaxConcurrency: 8,
		Logger:         slog.Default(),
	}
}

// Service composes the config cache, normalizer and evaluator.
type Service struct {
	config     Config
	cache      *config_cache.Cache
	normalizer *price_normalizer.Normalizer
	prices     outbound.PriceService
	quoter     outbound.UpdateFeeQuoter
	metrics    outbound.MetricsRecorder
	logger     *slog.Logger
}

// NewService creates an orchestrator. metrics may be nil.
func NewService(
	config Config,
	cache *config_cache.Cache,
	normalizer *price_normalizer.Normalizer,
	prices outbound.PriceService,
	quoter outbound.UpdateFeeQuoter,
	metrics outbound.MetricsRecorder,
) (*Service, error) {
	if cache == nil {
		return nil, fmt.Errorf("config cache cannot be nil")
	}
	if normalizer == nil {
		return nil, fmt.Errorf("normalizer cannot be nil")
	}
	if prices == nil {
		return nil, fmt.Errorf("price service cannot be nil")
	}
	if quoter == nil {
		return nil, fmt.Errorf("fee quoter cannot be nil")
	}

	defaults := configDefaults()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Service{
		config:     config,
		cache:      cache,
		normalizer: normalizer,
		prices:     prices,
		quoter:     quoter,
		metrics:    metrics,
		logger:     config.Logger.With("component", "update-orchestrator"),
	}, nil
}

// result is the internal outcome of one run.
type result struct {
	decision entity.Decision
	updated  []entity.FeedID
}

// Run executes one invocation.
func (s *Service) Run(ctx context.Context, inv Invocation) (decision entity.Decision) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "orchestrator.run", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("invocation panicked", "panic", r)
			span.SetStatus(codes.Error, "panic")
			s.recordDecision(ctx, OutcomeAborted, 0)
			decision = entity.NoAction("internal error: %v", r)
		}
	}()

	res, err := s.run(ctx, inv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invocation aborted")
		span.SetAttributes(attribute.String("decision.outcome", OutcomeAborted))
		s.logger.Warn("invocation aborted", "error", err)
		s.recordDecision(ctx, OutcomeAborted, 0)
		return entity.NoAction("%s", abortMessage(err))
	}

	outcome := OutcomeNoAction
	if res.decision.CanExec {
		outcome = OutcomeExecute
	}
	span.SetAttributes(
		attribute.String("decision.outcome", outcome),
		attribute.Int("decision.feeds_updated", len(res.updated)),
	)
	s.recordDecision(ctx, outcome, len(res.updated))
	return res.decision
}

func (s *Service) run(ctx context.Context, inv Invocation) (result, error) {
	if inv.Storage == nil {
		return result{}, errors.New("invocation has no storage")
	}

	sourceID, err := resolveSourceID(ctx, inv)
	if err != nil {
		return result{}, err
	}

	// Start -> ConfigReady
	cfg, err := s.cache.EnsureConfig(ctx, inv.Storage, sourceID)
	if err != nil {
		return result{}, err
	}
	logger := s.logger.With("feeds", len(cfg.FeedIDs), "callMode", cfg.CallMode)

	// ConfigReady -> PricesFetched
	current, err := s.normalizer.FetchCurrent(ctx, cfg.FeedIDs, cfg.ServiceEndpoint)
	if err != nil {
		return result{}, err
	}
	if len(current) < len(cfg.FeedIDs) {
		return result{}, partialError(cfg.FeedIDs, current)
	}

	last, err := s.readLast(ctx, inv.Storage, cfg.FeedIDs)
	if err != nil {
		return result{}, err
	}

	// PricesFetched -> Evaluated
	var (
		subset  []entity.FeedID
		summary []string
	)
	for _, id := range cfg.FeedIDs {
		ev, err := evaluator.Evaluate(id, last[id], current[id], cfg)
		if err != nil {
			return result{}, err
		}

		s.logEvaluation(ctx, logger, cfg.Debug, id, last[id], current[id], ev)

		if ev.NeedsUpdate {
			subset = append(subset, id)
		} else {
			summary = append(summary, fmt.Sprintf("%s: %s", id, ev.Summary()))
		}
	}

	if len(subset) == 0 {
		return result{
			decision: entity.NoAction("No conditions met for price initialization or update for priceIds: %s",
				strings.Join(summary, "; ")),
		}, nil
	}

	// Evaluated -> Execute. The call is built and quoted before any record is
	// written: a failure here must leave the old baseline so the next
	// invocation still sees the deviation.
	call, err := s.buildCall(ctx, cfg, subset, current)
	if err != nil {
		return result{}, err
	}

	if err := s.writeCurrent(ctx, inv.Storage, subset, current); err != nil {
		return result{}, err
	}

	logger.Info("update required", "feeds", entity.FeedIDHexes(subset), "fee", call.Value)
	return result{decision: entity.Execute(call), updated: subset}, nil
}

// resolveSourceID reads the config source id from secrets, falling back to user args.
func resolveSourceID(ctx context.Context, inv Invocation) (string, error) {
	if inv.Secrets != nil {
		v, ok, err := inv.Secrets.Get(ctx, SecretConfigSource)
		if err != nil {
			return "", fmt.Errorf("reading secret %s: %w", SecretConfigSource, err)
		}
		if ok && v != "" {
			return v, nil
		}
	}
	if v, ok := inv.UserArgs[ArgConfigSource].(string); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s not set in secrets", SecretConfigSource)
}

// readLast loads the persisted record of every feed. Absent keys map to nil.
func (s *Service) readLast(ctx context.Context, store outbound.KVStore, ids []entity.FeedID) (map[entity.FeedID]*entity.PriceRecord, error) {
	records := make([]*entity.PriceRecord, len(ids))

	err := s.forEach(ctx, ids, func(i int, id entity.FeedID) error {
		key := id.Hex()
		raw, ok, err := store.Get(ctx, key)
		if err != nil {
			return &entity.StorageError{Op: "get", Key: key, Err: err}
		}
		if !ok {
			return nil
		}

		var rec entity.PriceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return &entity.MalformedStateError{Key: key, Err: err}
		}
		records[i] = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[entity.FeedID]*entity.PriceRecord, len(ids))
	for i, id := range ids {
		out[id] = records[i]
	}
	return out, nil
}

// writeCurrent persists the current record of every feed in ids. Writes are
// independent and idempotent, so a partial failure leaves a consistent store.
func (s *Service) writeCurrent(ctx context.Context, store outbound.KVStore, ids []entity.FeedID, current map[entity.FeedID]entity.PriceRecord) error {
	return s.forEach(ctx, ids, func(_ int, id entity.FeedID) error {
		key := id.Hex()
		data, err := json.Marshal(current[id])
		if err != nil {
			return fmt.Errorf("encoding record for %s: %w", key, err)
		}
		if err := store.Set(ctx, key, string(data)); err != nil {
			return &entity.StorageError{Op: "set", Key: key, Err: err}
		}
		return nil
	})
}

// forEach runs fn for every id with bounded concurrency and returns the error
// of the first failing id in input order.
func (s *Service) forEach(ctx context.Context, ids []entity.FeedID, fn func(i int, id entity.FeedID) error) error {
	errs := make([]error, len(ids))
	sem := make(chan struct{}, s.config.MaxConcurrency)

	var wg sync.WaitGroup
	for i, id := range ids {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = fn(i, id)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// buildCall fetches the signed update data for ids, encodes the call for the
// configured mode and attaches the fee quoted for that exact payload.
func (s *Service) buildCall(ctx context.Context, cfg *entity.OracleConfig, ids []entity.FeedID, current map[entity.FeedID]entity.PriceRecord) (entity.CallData, error) {
	updateData, err := s.prices.GetUpdateData(ctx, cfg.ServiceEndpoint, entity.FeedIDHexes(ids))
	if err != nil {
		return entity.CallData{}, &entity.CallBuildError{Step: "update data", Err: err}
	}
	if len(updateData) == 0 {
		return entity.CallData{}, &entity.CallBuildError{Step: "update data", Err: errors.New("price service returned no update data")}
	}

	publishTimes := make([]int64, len(ids))
	for i, id := range ids {
		publishTimes[i] = current[id].PublishTime()
	}

	data, err := blockchain.EncodeUpdateCall(blockchain.UpdateCall{
		Mode:         cfg.CallMode,
		UpdateData:   updateData,
		FeedIDs:      ids,
		PublishTimes: publishTimes,
	})
	if err != nil {
		return entity.CallData{}, &entity.CallBuildError{Step: "encode", Err: err}
	}

	fee, err := s.quoter.GetUpdateFee(ctx, cfg.ContractAddress, updateData)
	if err != nil {
		return entity.CallData{}, &entity.CallBuildError{Step: "fee quote", Err: err}
	}
	if fee == nil {
		fee = new(big.Int)
	}

	return entity.CallData{
		To:    cfg.Destination(),
		Data:  data,
		Value: fee,
	}, nil
}

func (s *Service) logEvaluation(ctx context.Context, logger *slog.Logger, debug bool, id entity.FeedID, last *entity.PriceRecord, current entity.PriceRecord, ev evaluator.Evaluation) {
	level := slog.LevelDebug
	if debug {
		level = slog.LevelInfo
	}

	attrs := []any{
		"feed", id,
		"current", current,
		"needsUpdate", ev.NeedsUpdate,
		"reason", ev.Reason,
	}
	if last != nil {
		attrs = append(attrs, "last", *last, "deviationBps", ev.DeviationBps, "elapsedSeconds", ev.ElapsedSeconds)
	}
	logger.Log(ctx, level, "feed evaluated", attrs...)
}

func (s *Service) recordDecision(ctx context.Context, outcome string, feeds int) {
	if s.metrics != nil {
		s.metrics.RecordDecision(ctx, outcome, feeds)
	}
}

func partialError(ids []entity.FeedID, current map[entity.FeedID]entity.PriceRecord) error {
	var missing []entity.FeedID
	for _, id := range ids {
		if _, ok := current[id]; !ok {
			missing = append(missing, id)
		}
	}
	return &entity.PartialPriceDataError{
		Requested: len(ids),
		Received:  len(current),
		Missing:   missing,
	}
}

// abortMessage renders an abort reason for the decision message.
func abortMessage(err error) string {
	var (
		cfe *entity.ConfigFetchError
		pfe *entity.PriceFetchError
		ppe *entity.PartialPriceDataError
		eve *entity.EvaluationError
		mse *entity.MalformedStateError
		ste *entity.StorageError
		cbe *entity.CallBuildError
	)
	switch {
	case errors.As(err, &cfe):
		return "Failed to load config: " + err.Error()
	case errors.As(err, &pfe):
		return "Failed to fetch prices: " + err.Error()
	case errors.As(err, &ppe):
		return "Not all prices available: " + err.Error()
	case errors.As(err, &eve):
		return "Evaluation failed: " + err.Error()
	case errors.As(err, &mse):
		return "Corrupt persisted state: " + err.Error()
	case errors.As(err, &ste):
		return "Storage failure: " + err.Error()
	case errors.As(err, &cbe):
		return "Failed to build update call: " + err.Error()
	default:
		return err.Error()
	}
}
