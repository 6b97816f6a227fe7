package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finreport/internal/amqp"
	"finreport/internal/cli"
	"finreport/internal/log"
	"finreport/internal/storage"
	"finreport/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err == nil {
		err = cfg.ValidateWorker()
	}
	if err != nil {
		cli.SetupLogger("info", nil).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, nil).WithComponent(log.ComponentApp)
	logger.Info("Starting finreport-worker", log.FieldOperation, log.OpStartup)

	store, err := storage.NewReportStore(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to open report store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	consumer, err := amqp.NewConsumer(cli.AMQPConfig(cfg), cfg.WorkerPrefetch, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP consumer", "error", err)
		store.Close()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := consumer.Close(); err != nil {
			logger.Error("Failed to close AMQP consumer", "error", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("Failed to close report store", "error", err)
		}
	})

	archiver := worker.NewArchiveWorker(store, logger)
	if err := consumer.Consume(ctx, archiver.HandleReportMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		_ = consumer.Close()
		_ = store.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
