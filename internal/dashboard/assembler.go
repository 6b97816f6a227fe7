package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finreport/internal/core"
	"finreport/internal/ledger"
	"finreport/internal/log"
)

// RateProvider returns the RUB rate of a currency.
type RateProvider interface {
	Rate(ctx context.Context, code string) (core.Money, error)
}

// PriceProvider returns the latest price of a ticker.
type PriceProvider interface {
	Price(ctx context.Context, ticker string) (core.Money, error)
}

// Mode controls how failed quote lookups appear in the summary.
type Mode string

const (
	// ModeStrict drops failed lookups from the summary.
	ModeStrict Mode = "strict"
	// ModeLenient keeps failed lookups with an error message instead of a value.
	ModeLenient Mode = "lenient"
)

// ParseMode maps a config value to a Mode; anything but "lenient" is strict.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeLenient)) {
		return ModeLenient
	}
	return ModeStrict
}

// Assembler builds dashboard summaries.
type Assembler struct {
	rates  RateProvider
	prices PriceProvider
	mode   Mode
	logger *log.Logger
}

// NewAssembler returns an assembler. Nil providers produce empty quote lists.
func NewAssembler(rates RateProvider, prices PriceProvider, mode Mode, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = log.Discard()
	}
	if mode == "" {
		mode = ModeStrict
	}
	return &Assembler{rates: rates, prices: prices, mode: mode, logger: logger.WithComponent(log.ComponentDashboard)}
}

// Build summarises the month of ref up to and including ref's date.
//
// Records are restricted to the month-to-date window and to status OK. An
// empty window therefore fails with ErrEmptyInput, and a malformed record
// date fails with ErrDateFormat. Quote lookups run one per code, in order; a
// failed lookup never fails the build.
func (a *Assembler) Build(ctx context.Context, ref time.Time, records []core.Record, settings core.Settings) (core.Summary, error) {
	start, end := core.MonthToDate(ref).DisplayBounds()

	inMonth, err := ledger.FilterByDateRange(records, start, end)
	if err != nil {
		return core.Summary{}, fmt.Errorf("filter month %s..%s: %w", start, end, err)
	}
	ok, err := ledger.FilterByStatus(inMonth, ledger.DefaultStatus)
	if err != nil {
		return core.Summary{}, fmt.Errorf("filter month %s..%s: %w", start, end, err)
	}
	a.logger.DebugContext(ctx, "Dashboard window filtered",
		log.NewFields().WithWindow(start, end).WithCounts(len(records), len(ok)).ToSlice()...)

	return core.Summary{
		Greeting:        Greeting(ref.Hour()),
		Cards:           ledger.CardSummaries(ok),
		TopTransactions: ledger.TopTransactions(ok, ledger.DefaultTopN),
		CurrencyRates:   a.currencyRates(ctx, settings.UserCurrencies),
		StockPrices:     a.stockPrices(ctx, settings.UserStocks),
	}, nil
}

func (a *Assembler) currencyRates(ctx context.Context, codes []string) []core.CurrencyRate {
	out := make([]core.CurrencyRate, 0, len(codes))
	if a.rates == nil {
		return out
	}
	for _, code := range codes {
		rate, err := a.rates.Rate(ctx, code)
		if err != nil {
			a.logger.LogError(ctx, "Currency rate lookup failed", err, log.OpRate, log.LogFields{log.FieldCurrency: code})
			if a.mode == ModeLenient {
				out = append(out, core.CurrencyRate{Currency: code, Error: err.Error()})
			}
			continue
		}
		out = append(out, core.CurrencyRate{Currency: code, Rate: &rate})
	}
	return out
}

func (a *Assembler) stockPrices(ctx context.Context, tickers []string) []core.StockPrice {
	out := make([]core.StockPrice, 0, len(tickers))
	if a.prices == nil {
		return out
	}
	for _, ticker := range tickers {
		price, err := a.prices.Price(ctx, ticker)
		if err != nil {
			a.logger.LogError(ctx, "Stock price lookup failed", err, log.OpPrice, log.LogFields{log.FieldTicker: ticker})
			if a.mode == ModeLenient {
				out = append(out, core.StockPrice{Stock: ticker, Error: err.Error()})
			}
			continue
		}
		out = append(out, core.StockPrice{Stock: ticker, Price: &price})
	}
	return out
}
