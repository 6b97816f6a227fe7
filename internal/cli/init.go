// Package cli provides the initialization shared by cmd/finreport and
// cmd/finreport-server: logging, configuration, and wiring of the ledger,
// quote providers and report sinks.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finreport/internal/amqp"
	"finreport/internal/cache"
	"finreport/internal/config"
	"finreport/internal/dashboard"
	"finreport/internal/log"
	"finreport/internal/quotes"
	"finreport/internal/report"
	"finreport/internal/services"
	"finreport/internal/sheets"
	"finreport/internal/sheets/file"
	"finreport/internal/sheets/google"
	"finreport/internal/storage"
)

// SetupLogger initializes structured logging at level and sets it as the
// default logger. Output goes to w (stdout when nil).
func SetupLogger(level string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl := log.ParseLevel(level)
	logger := log.New(log.Config{
		Level:   lvl,
		Handler: slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App is the wired object graph. Close releases every resource it holds.
type App struct {
	Service *services.ReportService
	Store   *storage.ReportStore
	Caches  *cache.Manager

	closers []io.Closer
}

// Close closes sinks and stops cache sweeping.
func (a *App) Close() error {
	if a.Caches != nil {
		a.Caches.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build wires the service described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	app := &App{}

	ledgerReader, err := NewLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := quotes.Options{
		Timeout:  cfg.QuotesTimeout,
		Retries:  cfg.QuotesRetries,
		CacheTTL: cfg.QuotesCacheTTL,
		Logger:   logger,
	}
	rates, err := quotes.NewRatesClient(cfg.ExchangeRatesURL, cfg.ExchangeRatesAPIKey, opts)
	if err != nil {
		return nil, fmt.Errorf("rates client: %w", err)
	}
	stocks, err := quotes.NewStocksClient(cfg.StocksURL, cfg.StocksAPIKey, opts)
	if err != nil {
		return nil, fmt.Errorf("stocks client: %w", err)
	}
	if cfg.QuotesCacheTTL > 0 {
		app.Caches = cache.NewManager(func(removed int) {
			logger.WithComponent(log.ComponentQuotes).Debug("Expired quotes evicted", "removed", removed)
		})
		app.Caches.Register(rates.Cache())
		app.Caches.Register(stocks.Cache())
		app.Caches.Start(cfg.QuotesCacheTTL)
	}

	sink, err := app.buildSinks(cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Service = services.NewReportService(services.Deps{
		Ledger:       ledgerReader,
		SettingsPath: cfg.SettingsPath,
		Rates:        rates,
		Prices:       stocks,
		QuoteMode:    dashboard.ParseMode(cfg.QuotesMode),
		Sink:         sink,
		Logger:       logger,
	})
	return app, nil
}

// NewLedger returns the ledger adapter selected by LEDGER_BACKEND.
func NewLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.LedgerReader, error) {
	switch cfg.LedgerBackend {
	case config.BackendSheets:
		c, err := google.NewFromEnv(ctx, google.Options{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			SheetName:     cfg.GoogleSheetName,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("sheets ledger: %w", err)
		}
		return c, nil
	case config.BackendFile, "":
		return file.NewReader(cfg.LedgerPath, logger), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

func (a *App) buildSinks(cfg *config.Config, logger *log.Logger) (report.Sink, error) {
	var sinks []report.Sink
	if cfg.HasSink(config.SinkFile) {
		sinks = append(sinks, report.NewFileSink(cfg.ReportDir, logger))
	}
	if cfg.HasSink(config.SinkSQLite) {
		store, err := storage.NewReportStore(cfg.SQLiteDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("report store: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store)
		sinks = append(sinks, store)
	}
	if cfg.HasSink(config.SinkAMQP) {
		pub, err := amqp.NewPublisher(AMQPConfig(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		a.closers = append(a.closers, pub)
		sinks = append(sinks, pub)
	}
	return report.Multi(sinks...), nil
}

// AMQPConfig is the broker configuration shared by publisher and consumer.
func AMQPConfig(cfg *config.Config) amqp.Config {
	return amqp.Config{
		URL:        cfg.AMQPURL,
		Exchange:   cfg.AMQPExchange,
		RoutingKey: cfg.AMQPRoutingKey,
		Queue:      cfg.AMQPQueue,
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
