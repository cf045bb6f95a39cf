package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/agargo/internal/config"
	"github.com/udisondev/agargo/internal/db"
	"github.com/udisondev/agargo/internal/hub"
	"github.com/udisondev/agargo/internal/logging"
	"github.com/udisondev/agargo/internal/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logFile, err := logging.Setup(cfg.LogDirectory, cfg.LogFileNamePrefix, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer logFile.Close()

	slog.Info("agargo server starting", "bind", cfg.BindAddr)

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	h := hub.New()
	srv := server.New(cfg.BindAddr, h.Queue(), database, cfg.BcryptCost)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
