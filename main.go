package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"goodsam/internal/config"
	"goodsam/internal/container"
	"goodsam/ui"
)

func main() {
	// Load application configuration (.env first, then the environment)
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := appContainer.Logger
	logger.Info("[Main] loading %s from %s", appConfig.Data.MainFile, appConfig.Data.Dir)
	if err := appContainer.Init(ctx); err != nil {
		logger.Error("[Main] %v", err)
		os.Exit(1)
	}

	api := appContainer.APIServer()
	ops := ui.NewOps(logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Start(gctx, appContainer.APIAddr()) })
	g.Go(func() error { return ops.Start(gctx, appContainer.OpsAddr()) })

	if err := g.Wait(); err != nil {
		logger.Error("[Main] server stopped: %v", err)
		os.Exit(1)
	}
	logger.Info("[Main] shutdown complete")
}
