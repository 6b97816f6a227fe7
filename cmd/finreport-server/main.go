package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finreport/internal/cli"
	apphttp "finreport/internal/http"
	"finreport/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", nil).Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, nil).WithComponent(log.ComponentApp)

	app, err := cli.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err, "backend", cfg.LedgerBackend)
		os.Exit(1)
	}

	opts := apphttp.Options{
		Addr:    ":" + cfg.Port,
		Service: app.Service,
		Logger:  logger,
	}
	if app.Store != nil {
		opts.Archive = app.Store
	}
	srv := apphttp.NewServer(opts)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", "error", err)
		}
	})

	logger.Info("Starting finreport server",
		"port", cfg.Port,
		"backend", cfg.LedgerBackend,
		"sinks", cfg.ReportSinks,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = app.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
