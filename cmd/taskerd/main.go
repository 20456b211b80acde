// Command taskerd runs a Tasker worker process. It loads a TOML config,
// opens the configured invocation store, replays every discovery setup
// linked into the binary and drains the configured queues until it is
// signalled to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/engine"
	"github.com/xraph/tasker/store"
	"github.com/xraph/tasker/store/memory"
	"github.com/xraph/tasker/store/mongo"
	"github.com/xraph/tasker/store/postgres"
	"github.com/xraph/tasker/store/redis"
)

func main() {
	cfgPath := flag.String("config", "", "TOML config file path (defaults apply when empty)")
	migrate := flag.Bool("migrate", true, "run store migrations on startup")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := run(*cfgPath, *migrate, logger); err != nil {
		logger.Error("taskerd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfgPath string, migrate bool, logger *slog.Logger) error {
	cfg := tasker.DefaultConfig()
	if cfgPath != "" {
		loaded, err := tasker.LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			logger.Warn("close store", slog.String("error", cerr.Error()))
		}
	}()

	if migrate {
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
	}

	eng, err := engine.New(s, engine.WithConfig(cfg), engine.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := eng.Autodiscover(ctx); err != nil {
		return fmt.Errorf("autodiscover: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}

	logger.Info("taskerd started",
		slog.String("store", cfg.Store.Driver),
		slog.Any("queues", cfg.Queues),
		slog.Int("tasks", eng.Registry().Len()),
	)

	<-ctx.Done()
	logger.Info("taskerd stopping")

	// The signal context is already done; shutdown gets its own deadline.
	return eng.Stop(context.Background())
}

// openStore returns the backend named by cfg.Driver and a function that
// releases it.
func openStore(ctx context.Context, cfg tasker.StoreConfig, logger *slog.Logger) (store.Store, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		s := memory.New()
		return s, s.Close, nil
	case "redis":
		if cfg.DSN == "" {
			return nil, nil, errors.New("store redis: dsn is required")
		}
		s, closeClient, err := redis.Open(cfg.DSN, redis.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, closeClient, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, nil, errors.New("store postgres: dsn is required")
		}
		s, err := postgres.New(ctx, cfg.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "mongo":
		if cfg.DSN == "" {
			return nil, nil, errors.New("store mongo: dsn is required")
		}
		s, disconnect, err := mongo.Open(cfg.DSN, cfg.Database, mongo.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, disconnect, nil
	default:
		return nil, nil, fmt.Errorf("store driver %q is not supported", cfg.Driver)
	}
}
