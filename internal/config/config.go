// Package config reads the runtime configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Ledger backends
const (
	BackendFile   = "file"
	BackendSheets = "sheets"
)

// Report sinks
const (
	SinkFile   = "file"
	SinkSQLite = "sqlite"
	SinkAMQP   = "amqp"
)

// Quote modes
const (
	QuotesStrict  = "strict"
	QuotesLenient = "lenient"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Ledger source
	LedgerBackend       string
	LedgerPath          string
	GoogleSpreadsheetID string
	GoogleSheetName     string

	SettingsPath string

	// Report sinks
	ReportSinks  []string
	ReportDir    string
	SQLiteDBPath string

	// AMQP
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
	AMQPQueue      string
	WorkerPrefetch int

	// Quote providers
	ExchangeRatesURL    string
	ExchangeRatesAPIKey string
	StocksURL           string
	StocksAPIKey        string
	QuotesTimeout       time.Duration
	QuotesRetries       int
	QuotesCacheTTL      time.Duration
	QuotesMode          string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LedgerBackend:       strings.ToLower(getEnv("LEDGER_BACKEND", BackendFile)),
		LedgerPath:          getEnv("LEDGER_PATH", "./data/operations.xlsx"),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", ""),

		SettingsPath: getEnv("SETTINGS_PATH", "./user_settings.json"),

		ReportSinks:  getEnvList("REPORT_SINKS", []string{SinkFile}),
		ReportDir:    getEnv("REPORT_DIR", "./reports"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/reports.db"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "finreport"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "reports"),
		AMQPQueue:      getEnv("AMQP_QUEUE", ""),
		WorkerPrefetch: getEnvInt("WORKER_PREFETCH", 10),

		ExchangeRatesURL:    getEnv("EXCHANGE_RATES_URL", "https://api.apilayer.com/exchangerates_data/latest"),
		ExchangeRatesAPIKey: getEnv("EXCHANGE_RATES_API_KEY", ""),
		StocksURL:           getEnv("STOCKS_URL", "https://www.alphavantage.co/query"),
		StocksAPIKey:        getEnv("STOCKS_API_KEY", ""),
		QuotesTimeout:       getEnvDuration("QUOTES_TIMEOUT", 0),
		QuotesRetries:       getEnvInt("QUOTES_RETRIES", 0),
		QuotesCacheTTL:      getEnvDuration("QUOTES_CACHE_TTL", 0),
		QuotesMode:          strings.ToLower(getEnv("QUOTES_MODE", QuotesStrict)),
	}
}

// HasSink reports whether name is among the configured report sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.ReportSinks {
		if s == name {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.LedgerBackend {
	case BackendFile:
		if c.LedgerPath == "" {
			errors = append(errors, "ledger path cannot be empty when using file backend")
		} else if ext := strings.ToLower(filepath.Ext(c.LedgerPath)); ext != ".xlsx" && ext != ".xlsm" && ext != ".csv" {
			errors = append(errors, fmt.Sprintf("unsupported ledger file '%s': must be .xlsx or .csv", c.LedgerPath))
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of [%s %s]", c.LedgerBackend, BackendFile, BackendSheets))
	}

	for _, s := range c.ReportSinks {
		if s != SinkFile && s != SinkSQLite && s != SinkAMQP {
			errors = append(errors, fmt.Sprintf("invalid report sink '%s': must be one of [%s %s %s]", s, SinkFile, SinkSQLite, SinkAMQP))
		}
	}

	if c.HasSink(SinkFile) && c.ReportDir == "" {
		errors = append(errors, "report directory cannot be empty when using file sink")
	}

	if c.HasSink(SinkSQLite) {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite sink")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.HasSink(SinkAMQP) {
		if c.AMQPURL == "" {
			errors = append(errors, "AMQP URL is required when using amqp sink")
		} else if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when using amqp sink")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when using amqp sink")
		}
	}

	for _, p := range [][2]string{{"EXCHANGE_RATES_URL", c.ExchangeRatesURL}, {"STOCKS_URL", c.StocksURL}} {
		if u, err := url.Parse(p[1]); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an http(s) URL", p[0], p[1]))
		}
	}

	if c.QuotesTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid quotes timeout %v: must not be negative", c.QuotesTimeout))
	}
	if c.QuotesRetries < 0 || c.QuotesRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid quotes retries %d: must be between 0 and 10", c.QuotesRetries))
	}
	if c.QuotesCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid quotes cache TTL %v: must not be negative", c.QuotesCacheTTL))
	}
	if c.QuotesMode != QuotesStrict && c.QuotesMode != QuotesLenient {
		errors = append(errors, fmt.Sprintf("invalid quotes mode '%s': must be '%s' or '%s'", c.QuotesMode, QuotesStrict, QuotesLenient))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks what the archive worker needs on top of Validate:
// a broker to consume from and a database to archive into.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the archive worker")
	}
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path is required for the archive worker")
	}
	if c.WorkerPrefetch < 1 || c.WorkerPrefetch > 1000 {
		errors = append(errors, fmt.Sprintf("invalid worker prefetch %d: must be between 1 and 1000", c.WorkerPrefetch))
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks. An unset or
// blank variable yields defaultValue; "none" yields an empty list.
func getEnvList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	out := []string{}
	if strings.EqualFold(value, "none") {
		return out
	}
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
