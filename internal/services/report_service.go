// Package services wires the ledger, settings, quote providers and report
// sinks into the operations exposed by the CLI and the HTTP API.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finreport/internal/core"
	"finreport/internal/dashboard"
	"finreport/internal/ledger"
	"finreport/internal/log"
	"finreport/internal/report"
	"finreport/internal/settings"
	"finreport/internal/sheets"
)

// Report operation names, also used in generated file names.
const (
	OpSpendingByCategory = "spending_by_category"
	OpCategoryTotals     = "category_totals"
)

// Deps are the collaborators of ReportService. Only Ledger is required.
type Deps struct {
	Ledger       sheets.LedgerReader
	SettingsPath string
	Rates        dashboard.RateProvider
	Prices       dashboard.PriceProvider
	QuoteMode    dashboard.Mode
	Sink         report.Sink
	Logger       *log.Logger
	Now          func() time.Time
}

// ReportService runs the three ledger views. It keeps no state between
// calls: the ledger and settings are read afresh every time.
type ReportService struct {
	ledger       sheets.LedgerReader
	settingsPath string
	assembler    *dashboard.Assembler
	sink         report.Sink
	logger       *log.Logger
	now          func() time.Time
}

// NewReportService builds the service from deps.
func NewReportService(d Deps) *ReportService {
	logger := d.Logger
	if logger == nil {
		logger = log.Discard()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	sink := d.Sink
	if sink == nil {
		sink = report.Discard
	}
	path := d.SettingsPath
	if path == "" {
		path = settings.DefaultPath
	}
	return &ReportService{
		ledger:       d.Ledger,
		settingsPath: path,
		assembler:    dashboard.NewAssembler(d.Rates, d.Prices, d.QuoteMode, logger),
		sink:         sink,
		logger:       logger.WithComponent(log.ComponentServices),
		now:          now,
	}
}

// Dashboard builds the month-to-date summary for ref ("YYYY-MM-DD HH:MM:SS";
// blank means now).
func (s *ReportService) Dashboard(ctx context.Context, ref string) (core.Summary, error) {
	at, err := s.reference(ref)
	if err != nil {
		return core.Summary{}, err
	}
	records, err := s.read(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	cfg := settings.Load(s.settingsPath, s.logger)

	summary, err := s.assembler.Build(ctx, at, records, cfg)
	if err != nil {
		s.logger.LogError(ctx, "Dashboard failed", err, log.OpDashboard, nil)
		return core.Summary{}, err
	}
	s.logger.InfoContext(ctx, "Dashboard built",
		log.FieldOperation, log.OpDashboard,
		"cards", len(summary.Cards),
		"rates", len(summary.CurrencyRates),
		"stocks", len(summary.StockPrices))
	return summary, nil
}

// Search returns records whose description or category contains query,
// ignoring case.
func (s *ReportService) Search(ctx context.Context, query string) ([]core.Record, error) {
	records, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	found := ledger.Search(records, query)
	s.logger.InfoContext(ctx, "Search is done",
		log.NewFields().WithOperation(log.OpSearch).WithCounts(len(records), len(found)).ToSlice()...)
	return found, nil
}

// SearchJSON is Search rendered as indented UTF-8 JSON.
func (s *ReportService) SearchJSON(ctx context.Context, query string) (string, error) {
	found, err := s.Search(ctx, query)
	if err != nil {
		return "", err
	}
	body, err := report.Encode(found)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// SpendingByCategory returns the category's records in the three months
// ending at ref and writes them to the report sink.
func (s *ReportService) SpendingByCategory(ctx context.Context, category, ref string) ([]core.Record, error) {
	at, err := s.reference(ref)
	if err != nil {
		return nil, err
	}
	records, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	out, err := report.Compute(ctx, s.sink, OpSpendingByCategory, "", s.now(), func() ([]core.Record, error) {
		return ledger.SpendingByCategory(records, category, at)
	})
	if err = s.sinkFailure(ctx, OpSpendingByCategory, err); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Category report built",
		log.NewFields().WithOperation(log.OpCategory).WithCounts(len(records), len(out)).ToSlice()...)
	return out, nil
}

// CategoryTotals is SpendingByCategory reduced to one sum per category,
// the grouped view of the same window.
func (s *ReportService) CategoryTotals(ctx context.Context, category, ref string) ([]core.CategoryAmount, error) {
	at, err := s.reference(ref)
	if err != nil {
		return nil, err
	}
	records, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	out, err := report.Compute(ctx, s.sink, OpCategoryTotals, "", s.now(), func() ([]core.CategoryAmount, error) {
		matched, err := ledger.SpendingByCategory(records, category, at)
		if err != nil {
			return nil, err
		}
		return ledger.CategoryTotals(matched), nil
	})
	if err = s.sinkFailure(ctx, OpCategoryTotals, err); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Category totals built",
		log.FieldOperation, log.OpTotals, log.FieldCategory, category)
	return out, nil
}

// sinkFailure logs and swallows report write errors; the computed value is
// still returned to the caller. Other errors pass through.
func (s *ReportService) sinkFailure(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, report.ErrSinkWrite) {
		s.logger.LogError(ctx, "Failed to write report", err, log.OpWrite, log.LogFields{log.FieldReport: op})
		return nil
	}
	return err
}

func (s *ReportService) reference(ref string) (time.Time, error) {
	if strings.TrimSpace(ref) == "" {
		return s.now(), nil
	}
	return core.ParseReference(ref)
}

func (s *ReportService) read(ctx context.Context) ([]core.Record, error) {
	if s.ledger == nil {
		return nil, errors.New("no ledger source configured")
	}
	records, err := s.ledger.ReadLedger(ctx)
	if err != nil {
		s.logger.LogError(ctx, "Failed to read ledger", err, log.OpRead, nil)
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return records, nil
}
