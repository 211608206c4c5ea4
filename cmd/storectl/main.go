package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/cli"
	"github.com/ariefcatur/go-bookstore-engine/internal/config"
	"github.com/ariefcatur/go-bookstore-engine/internal/engine"
	"github.com/ariefcatur/go-bookstore-engine/internal/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	open := func(ctx context.Context) (*engine.Engine, func(), error) {
		if cfg.StoreBackend != config.BackendPostgres {
			return nil, nil, fmt.Errorf("storectl needs STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
		}
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, nil, err
		}
		eng, err := engine.New(postgres.NewStore(pool), engine.WithLogger(logger), engine.WithProofTTL(cfg.KycProofTTL))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := eng.SeedDesignatedOwner(ctx, bookstore.Identity(cfg.DesignatedOwner)); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return eng, pool.Close, nil
	}

	if err := cli.NewRootCommand(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
