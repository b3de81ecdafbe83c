// Command nfcescan is an interactive client for the NFC-e receipt service.
package main

import (
	"context"
	"os"
	"time"

	"nfcescan/internal/cache"
	"nfcescan/internal/cli"
	"nfcescan/internal/coordinator"
	"nfcescan/internal/log"
	"nfcescan/internal/remote"
)

func main() {
	bootstrap := log.New(log.DefaultConfig())
	cli.LoadEnvFile(bootstrap)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg)

	client := remote.New(remote.Options{
		BaseURL:     cfg.APIBaseURL,
		Timeout:     cfg.RequestTimeout,
		ScanTimeout: cfg.ScanTimeout,
		CategoryTTL: cfg.CategoryCacheTTL,
		Logger:      logger,
	})

	sh := cli.NewShell(os.Stdout, cli.Interactive(os.Stdin), logger)
	coord := coordinator.New(coordinator.Options{
		Service:      client,
		Logger:       logger,
		Notify:       sh.Notify,
		ListLimit:    cfg.ListLimit,
		VendorLimit:  cfg.VendorLimit,
		ScanCooldown: cfg.ScanCooldown,
	})

	runCtx, stop := context.WithCancel(context.Background())
	ctx, done := cli.GracefulShutdown(runCtx, logger, 5*time.Second, nil)

	caches := cache.NewManager(logger)
	caches.Register(client.CategoryCache())
	go caches.Run(ctx, cfg.CategoryCacheTTL)

	if h, err := cli.ProbeService(ctx, client, uint(cfg.StartupProbes), time.Second, logger); err != nil {
		logger.Warn("Receipt service unreachable, continuing offline",
			log.FieldOperation, log.OpStartup,
			"url", cfg.APIBaseURL,
			log.FieldError, err)
	} else if h.Status != "" {
		logger.Info("Receipt service reachable", "url", cfg.APIBaseURL, "status", h.Status)
	}

	if _, err := coord.LoadCategories(ctx); err == nil {
		_ = coord.Refresh(ctx)
	}

	err := sh.Run(ctx, coord, client, os.Stdin)
	stop()
	cli.WaitForShutdown(ctx, done)
	if err != nil {
		logger.Error("Shell stopped", log.FieldError, err)
		os.Exit(1)
	}
}
