package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/config"
	"github.com/ariefcatur/go-bookstore-engine/internal/engine"
	"github.com/ariefcatur/go-bookstore-engine/internal/httpx"
	kafkax "github.com/ariefcatur/go-bookstore-engine/internal/kafka"
	"github.com/ariefcatur/go-bookstore-engine/internal/memstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/metrics"
	"github.com/ariefcatur/go-bookstore-engine/internal/postgres"
	"github.com/ariefcatur/go-bookstore-engine/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "bookstore-api")

	if err := run(logger); err != nil {
		logger.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.New(reg)),
		engine.WithProofTTL(cfg.KycProofTTL),
		engine.WithProducerName(cfg.ServiceName),
	}

	// producers outlive the request context so queued events are flushed on shutdown
	var bus *kafkax.EventBus
	if len(cfg.KafkaBrokers) > 0 {
		bus = kafkax.NewEventBus(cfg.KafkaBrokers, 1024, logger)
		bus.Start(context.Background())
		defer bus.Close()
		opts = append(opts, engine.WithPublisher(bus))
	}

	eng, err := engine.New(store, opts...)
	if err != nil {
		return err
	}
	if err := eng.SeedDesignatedOwner(ctx, bookstore.Identity(cfg.DesignatedOwner)); err != nil {
		return err
	}

	h := &httpx.Handler{Engine: eng, Logger: logger}
	if rdb := redisx.New(cfg.RedisAddr); rdb != nil {
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, serving without cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			h.Cache = redisx.NewCache(rdb)
		}
	}

	var validator *httpx.TokenValidator
	if cfg.JWTSecret != "" {
		validator = httpx.NewTokenValidator(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set, trusting the " + httpx.PrincipalHeader + " header")
	}
	router := httpx.NewRouter(validator, logger, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP listening", "addr", cfg.HTTPAddr, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (bookstore.Store, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		return memstore.New(), func() {}, nil
	}
	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewStore(pool), pool.Close, nil
}
