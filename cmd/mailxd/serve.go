package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/infodancer/mailxd/internal/config"
	"github.com/infodancer/mailxd/internal/logging"
	"github.com/infodancer/mailxd/internal/metrics"
	"github.com/infodancer/mailxd/internal/server"
	"github.com/infodancer/mailxd/internal/store"
)

func runServe(cfg config.Config) {
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	st, err := store.New(cfg.DataDir, cfg.Hostname)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening data directory: %v\n", err)
		os.Exit(1)
	}

	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path)
		collector = metrics.NewPrometheusCollector(metricsServer.Registry())
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	logger.Info("starting mailxd",
		"domain", cfg.Hostname,
		"listen", cfg.Listen,
		"data_dir", cfg.DataDir)

	srv := server.New(server.Config{
		Cfg:       cfg,
		Store:     st,
		Collector: collector,
		Logger:    logger,
	})
	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("mailxd stopped")
}
