// Command nfcescan-devserver serves the receipt API from a local SQLite
// database. It never scrapes: /scan/url only answers for known receipts.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"nfcescan/internal/cli"
	apihttp "nfcescan/internal/http"
	"nfcescan/internal/log"
)

func main() {
	bootstrap := log.New(log.DefaultConfig())
	cli.LoadEnvFile(bootstrap)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	srv := apihttp.NewServer(":"+cfg.Port, repo, apihttp.Options{Logger: logger})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close database", log.FieldError, err)
		}
	})

	logger.Info("Starting nfcescan dev server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
