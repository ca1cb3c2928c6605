// Package main runs the Pyth price keeper.
//
// Modes:
//   - once:   run one invocation and print the Decision JSON on stdout
//   - worker: run one invocation per SQS trigger and publish each decision
//   - serve:  expose POST /v1/run and POST /v1/reset over HTTP
//   - reset:  delete the persisted state of the configured feeds
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/archon-research/stl/pyth-keeper/db"
	"github.com/archon-research/stl/pyth-keeper/db/migrator"
	httpadapter "github.com/archon-research/stl/pyth-keeper/internal/adapters/inbound/http"
	"github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/configsource"
	"github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/ethrpc"
	"github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/gist"
	"github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/hermes"
	"github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/memory"
	"github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/postgres"
	redisadapter "github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/redis"
	s3adapter "github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/s3"
	"github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/secrets"
	snsadapter "github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/sns"
	sqsadapter "github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/sqs"
	"github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/telemetry"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/env"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/httpclient"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/inbound"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
	"github.com/archon-research/stl/pyth-keeper/internal/services/config_cache"
	"github.com/archon-research/stl/pyth-keeper/internal/services/keeper"
	"github.com/archon-research/stl/pyth-keeper/internal/services/price_normalizer"
	"github.com/archon-research/stl/pyth-keeper/internal/services/shared"
	"github.com/archon-research/stl/pyth-keeper/internal/services/update_orchestrator"
)

const serviceName = "pyth-keeper"

var (
	modes         = []string{"once", "worker", "serve", "reset"}
	storeBackends = []string{"memory", "redis", "postgres"}
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := env.LoadDotEnv(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

type cliConfig struct {
	mode         string
	configSource string
	storeBackend string
	redis        redisadapter.Config
	dbURL        string
	namespace    string
	rpcURL       string
	queueURL     string
	sqsEndpoint  string
	snsTopicARN  string
	awsRegion    string
	otlpEndpoint string
	httpAddr     string
	githubToken  string

	maxTriggerAge time.Duration
}

func parseConfig(args []string) (cliConfig, error) {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	mode := fs.String("mode", "", "Run mode: once, worker, serve or reset")
	store := fs.String("store", "", "State backend: memory, redis or postgres")
	rpcURL := fs.String("rpc", "", "Ethereum JSON-RPC URL")
	queueURL := fs.String("queue", "", "SQS queue URL (worker mode)")
	dbURL := fs.String("db", "", "PostgreSQL connection URL")
	addr := fs.String("addr", "", "HTTP listen address")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	cfg := cliConfig{
		mode:         firstNonEmpty(*mode, fs.Arg(0), env.Get("KEEPER_MODE", "once")),
		storeBackend: firstNonEmpty(*store, env.Get("STORE_BACKEND", "memory")),
		rpcURL:       firstNonEmpty(*rpcURL, env.Get("ETH_RPC_URL", "")),
		queueURL:     firstNonEmpty(*queueURL, env.Get("AWS_SQS_QUEUE_URL", "")),
		dbURL:        firstNonEmpty(*dbURL, env.Get("DATABASE_URL", "")),
		httpAddr:     firstNonEmpty(*addr, env.Get("HTTP_ADDR", ":8080")),
		configSource: env.Get("CONFIG_SOURCE", ""),
		namespace:    env.Get("KEEPER_NAMESPACE", "default"),
		sqsEndpoint:  env.Get("AWS_SQS_ENDPOINT", ""),
		snsTopicARN:  env.Get("AWS_SNS_TOPIC_ARN", ""),
		awsRegion:    env.Get("AWS_REGION", "eu-west-1"),
		otlpEndpoint: env.Get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		githubToken:  env.Get("GITHUB_TOKEN", ""),
	}

	if !slices.Contains(modes, cfg.mode) {
		return cliConfig{}, fmt.Errorf("unknown mode %q (want one of %v)", cfg.mode, modes)
	}
	if !slices.Contains(storeBackends, cfg.storeBackend) {
		return cliConfig{}, fmt.Errorf("unknown store backend %q (want one of %v)", cfg.storeBackend, storeBackends)
	}

	if cfg.rpcURL == "" {
		return cliConfig{}, fmt.Errorf("RPC URL not provided (use -rpc flag or ETH_RPC_URL env var)")
	}
	if cfg.mode == "worker" && cfg.queueURL == "" {
		return cliConfig{}, fmt.Errorf("queue URL not provided (use -queue flag or AWS_SQS_QUEUE_URL env var)")
	}

	switch cfg.storeBackend {
	case "postgres":
		if cfg.dbURL == "" {
			return cliConfig{}, fmt.Errorf("database URL not provided (use -db flag or DATABASE_URL env var)")
		}
	case "redis":
		redisDB, err := env.GetInt("REDIS_DB", 0)
		if err != nil {
			return cliConfig{}, err
		}
		defaults := redisadapter.ConfigDefaults()
		cfg.redis = redisadapter.Config{
			Addr:      env.Get("REDIS_ADDR", defaults.Addr),
			Password:  env.Get("REDIS_PASSWORD", ""),
			DB:        redisDB,
			KeyPrefix: env.Get("REDIS_KEY_PREFIX", defaults.KeyPrefix),
		}
	}

	maxAge, err := env.GetDuration("KEEPER_MAX_TRIGGER_AGE", 0)
	if err != nil {
		return cliConfig{}, err
	}
	cfg.maxTriggerAge = maxAge

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// app holds the wired components shared by every mode.
type app struct {
	updater *update_orchestrator.Service
	storage outbound.KVStore
	secrets outbound.SecretStore
	sinks   keeper.MultiSink
	awsCfg  aws.Config
	logger  *slog.Logger
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}

	// once and reset write their result to stdout, so logs go to stderr.
	logOut := io.Writer(os.Stdout)
	if cfg.mode == "once" || cfg.mode == "reset" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	logger.Info("starting pyth keeper", "mode", cfg.mode, "store", cfg.storeBackend)

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:  serviceName,
		Environment:  env.Get("ENVIRONMENT", "development"),
		OTLPEndpoint: cfg.otlpEndpoint,
	})
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	shutdownMetrics, err := telemetry.InitMetrics(ctx, telemetry.MetricConfig{
		ServiceName:  serviceName,
		Environment:  env.Get("ENVIRONMENT", "development"),
		OTLPEndpoint: cfg.otlpEndpoint,
	})
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := errors.Join(shutdownTracer(flushCtx), shutdownMetrics(flushCtx)); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	a, cleanup, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	switch cfg.mode {
	case "once":
		return runOnce(ctx, cfg, a, stdout)
	case "reset":
		return runReset(ctx, cfg, a, stdout)
	case "worker":
		return runWorker(ctx, cfg, a)
	default:
		return runServe(ctx, cfg, a)
	}
}

func wire(ctx context.Context, cfg cliConfig, logger *slog.Logger) (*app, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*app, func(), error) {
		cleanup()
		return nil, nil, err
	}

	a := &app{secrets: secrets.NewEnv(""), logger: logger}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.awsRegion))
	if err != nil {
		return fail(fmt.Errorf("loading AWS config: %w", err))
	}
	a.awsCfg = awsCfg

	switch cfg.storeBackend {
	case "redis":
		store, err := redisadapter.NewKVStore(cfg.redis, logger)
		if err != nil {
			return fail(fmt.Errorf("creating redis store: %w", err))
		}
		closers = append(closers, func() { _ = store.Close() })
		if err := store.Ping(ctx); err != nil {
			return fail(fmt.Errorf("connecting to redis: %w", err))
		}
		logger.Info("redis connected", "addr", cfg.redis.Addr)
		a.storage = store

	case "postgres":
		pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(cfg.dbURL))
		if err != nil {
			return fail(fmt.Errorf("connecting to database: %w", err))
		}
		closers = append(closers, pool.Close)
		if err := migrator.New(pool, db.Migrations(), logger).ApplyAll(ctx); err != nil {
			return fail(fmt.Errorf("applying migrations: %w", err))
		}
		logger.Info("PostgreSQL connected")

		store, err := postgres.NewKVStore(pool, cfg.namespace, logger)
		if err != nil {
			return fail(fmt.Errorf("creating postgres store: %w", err))
		}
		a.storage = store

		decisionLog, err := postgres.NewDecisionLog(pool, cfg.namespace, logger)
		if err != nil {
			return fail(fmt.Errorf("creating decision log: %w", err))
		}
		a.sinks = append(a.sinks, decisionLog)

	default:
		if cfg.mode != "once" {
			logger.Warn("memory store keeps state only for the life of the process")
		}
		a.storage = memory.NewKVStore()
	}

	if cfg.snsTopicARN != "" {
		sink, err := snsadapter.NewDecisionSink(sns.NewFromConfig(awsCfg), snsadapter.Config{
			TopicARN: cfg.snsTopicARN,
			Logger:   logger,
		})
		if err != nil {
			return fail(fmt.Errorf("creating SNS decision sink: %w", err))
		}
		a.sinks = append(a.sinks, sink)
	}
	closers = append(closers, func() {
		if err := a.sinks.Close(); err != nil {
			logger.Warn("closing decision sinks", "error", err)
		}
	})

	ethClient, err := ethclient.DialContext(ctx, cfg.rpcURL)
	if err != nil {
		return fail(fmt.Errorf("connecting to Ethereum node: %w", err))
	}
	closers = append(closers, ethClient.Close)

	quoter, err := ethrpc.NewFeeQuoter(ethClient, logger)
	if err != nil {
		return fail(fmt.Errorf("creating fee quoter: %w", err))
	}

	source := &configsource.Router{
		Gist: gist.NewClient(gist.ClientConfig{Token: cfg.githubToken, Logger: logger}),
		S3:   s3adapter.NewConfigSource(awsCfg, logger),
		URL:  configsource.NewURLSource(httpclient.Config{}, nil, logger),
	}

	metrics, err := shared.NewAppTelemetry()
	if err != nil {
		return fail(fmt.Errorf("creating telemetry: %w", err))
	}

	cache, err := config_cache.New(config_cache.Config{Logger: logger}, source, metrics)
	if err != nil {
		return fail(fmt.Errorf("creating config cache: %w", err))
	}

	prices := hermes.NewClient(hermes.ClientConfig{Logger: logger})
	normalizer, err := price_normalizer.New(prices, logger)
	if err != nil {
		return fail(fmt.Errorf("creating price normalizer: %w", err))
	}

	a.updater, err = update_orchestrator.NewService(update_orchestrator.Config{Logger: logger},
		cache, normalizer, prices, quoter, metrics)
	if err != nil {
		return fail(fmt.Errorf("creating orchestrator: %w", err))
	}

	return a, cleanup, nil
}

func (a *app) invocation(cfg cliConfig) inbound.Invocation {
	inv := inbound.Invocation{Storage: a.storage, Secrets: a.secrets}
	if cfg.configSource != "" {
		inv.UserArgs = map[string]any{update_orchestrator.ArgConfigSource: cfg.configSource}
	}
	return inv
}

func runOnce(ctx context.Context, cfg cliConfig, a *app, stdout io.Writer) error {
	decision := a.updater.Run(ctx, a.invocation(cfg))

	if len(a.sinks) > 0 {
		event := outbound.DecisionEvent{
			InvocationID: fmt.Sprintf("once-%d", time.Now().UnixNano()),
			Decision:     decision,
			DecidedAt:    time.Now().UTC(),
		}
		if err := a.sinks.Publish(ctx, event); err != nil {
			a.logger.Error("publishing decision", "error", err)
		}
	}

	return writeJSON(stdout, decision)
}

func runReset(ctx context.Context, cfg cliConfig, a *app, stdout io.Writer) error {
	deleted, err := a.updater.Reset(ctx, a.invocation(cfg))
	if werr := writeJSON(stdout, map[string]any{"deleted": deleted}); werr != nil {
		return errors.Join(err, werr)
	}
	if err != nil {
		return fmt.Errorf("resetting state: %w", err)
	}
	return nil
}

func runWorker(ctx context.Context, cfg cliConfig, a *app) error {
	var sqsOptFns []func(*sqs.Options)
	if cfg.sqsEndpoint != "" {
		sqsOptFns = append(sqsOptFns, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.sqsEndpoint)
		})
	}

	consumer, err := sqsadapter.NewConsumer(a.awsCfg, sqsadapter.Config{
		QueueURL: cfg.queueURL,
	}, a.logger, sqsOptFns...)
	if err != nil {
		return fmt.Errorf("creating SQS consumer: %w", err)
	}
	defer consumer.Close()

	sink := outbound.DecisionSink(a.sinks)
	if len(a.sinks) == 0 {
		a.logger.Warn("no decision sink configured, decisions are only logged")
		sink = newLogSink(a.logger)
	}

	service, err := keeper.NewService(keeper.Config{
		MaxTriggerAge: cfg.maxTriggerAge,
		Logger:        a.logger,
	}, consumer, a.updater, a.storage, a.secrets, sink)
	if err != nil {
		return fmt.Errorf("creating keeper: %w", err)
	}

	var shuttingDown atomic.Bool
	server := httpadapter.NewServer(httpadapter.ServerConfig{Addr: cfg.httpAddr, Logger: a.logger}, service, &shuttingDown, nil)
	server.Start()

	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("starting keeper: %w", err)
	}
	a.logger.Info("keeper started, waiting for triggers...")

	<-ctx.Done()
	a.logger.Info("shutting down...")
	shuttingDown.Store(true)

	return shutdown(a.logger, 25*time.Second, service.Stop, func() error { return server.Shutdown(5 * time.Second) })
}

func runServe(ctx context.Context, cfg cliConfig, a *app) error {
	handler := httpadapter.NewHandler(a.updater, a.storage, a.secrets, a.logger)

	var shuttingDown atomic.Bool
	server := httpadapter.NewServer(httpadapter.ServerConfig{Addr: cfg.httpAddr, Logger: a.logger}, handler, &shuttingDown, handler)
	server.Start()

	<-ctx.Done()
	a.logger.Info("shutting down...")
	shuttingDown.Store(true)

	return shutdown(a.logger, 25*time.Second, func() error { return server.Shutdown(20 * time.Second) })
}

// shutdown runs every stop function in order and fails if they do not all
// return within timeout.
func shutdown(logger *slog.Logger, timeout time.Duration, stops ...func() error) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, stop := range stops {
			if err := stop(); err != nil {
				logger.Error("error during shutdown", "error", err)
			}
		}
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out")
	}
}

func writeJSON(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

var _ outbound.DecisionSink = (*logSink)(nil)

// logSink logs every decision. It is the worker's sink of last resort.
type logSink struct {
	logger *slog.Logger
}

func newLogSink(logger *slog.Logger) *logSink {
	return &logSink{logger: logger.With("component", "log-sink")}
}

func (s *logSink) Publish(_ context.Context, event outbound.DecisionEvent) error {
	data, err := json.Marshal(event.Decision)
	if err != nil {
		return err
	}
	s.logger.Info("decision", "invocationId", event.InvocationID, "decision", string(data))
	return nil
}

func (s *logSink) Close() error { return nil }
