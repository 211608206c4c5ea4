package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/config"
	kafkax "github.com/ariefcatur/go-bookstore-engine/internal/kafka"
	"github.com/ariefcatur/go-bookstore-engine/internal/library"
	"github.com/ariefcatur/go-bookstore-engine/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "bookstore-library")

	if err := run(logger); err != nil {
		logger.Error("library consumer exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := config.Load()
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	rdb := redisx.New(cfg.RedisAddr)
	if rdb == nil {
		return errors.New("REDIS_ADDR is required")
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := redisx.NewCache(rdb)
	svc := &library.Service{
		Dedup:       cache,
		Projection:  cache,
		ServiceName: cfg.ServiceName + "-library",
		Logger:      logger,
	}

	orders := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.LibraryGroup, bookstore.TopicOrderCreated, cfg.LibraryWorkers, logger)
	catalog := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.LibraryGroup+"-catalog", bookstore.TopicCatalog, 1, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("consumer started", "group", cfg.LibraryGroup, "topic", bookstore.TopicOrderCreated, "workers", cfg.LibraryWorkers)
		return orders.Start(gctx, svc.HandleOrderCreated)
	})
	g.Go(func() error {
		logger.Info("consumer started", "group", cfg.LibraryGroup+"-catalog", "topic", bookstore.TopicCatalog)
		return catalog.Start(gctx, svc.HandleCatalog)
	})
	return g.Wait()
}
