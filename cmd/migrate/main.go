// Package main applies the keeper's PostgreSQL migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/archon-research/stl/pyth-keeper/db"
	"github.com/archon-research/stl/pyth-keeper/db/migrator"
	"github.com/archon-research/stl/pyth-keeper/internal/adapters/outbound/postgres"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/env"
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
	dbURL string
	list  bool
}

func parseConfig(args []string) (cliConfig, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbURL := fs.String("db", "", "PostgreSQL connection URL")
	list := fs.Bool("list", false, "List applied migrations instead of applying")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	cfg := cliConfig{dbURL: *dbURL, list: *list}
	if cfg.dbURL == "" {
		cfg.dbURL = env.Get("DATABASE_URL", "")
	}
	if cfg.dbURL == "" {
		return cliConfig{}, fmt.Errorf("database URL not provided (use -db flag or DATABASE_URL env var)")
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))

	pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(cfg.dbURL))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	m := migrator.New(pool, db.Migrations(), logger)

	if !cfg.list {
		if err := m.ApplyAll(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("all migrations up to date")
	}

	applied, err := m.ListApplied(ctx)
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	for _, name := range applied {
		fmt.Fprintln(stdout, name)
	}
	return nil
}
