package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finreport/internal/core"
	"finreport/internal/report"
	"finreport/internal/sheets/memory"
)

type recordingSink struct {
	reports []report.Report
	err     error
}

func (s *recordingSink) Write(_ context.Context, r report.Report) error {
	s.reports = append(s.reports, r)
	return s.err
}

type staticRates struct{}

func (staticRates) Rate(context.Context, string) (core.Money, error) {
	return core.MustMoney("73.21"), nil
}

func rec(date, category, desc, amount string) core.Record {
	return core.Record{PaymentDate: date, Category: category, Description: desc, Amount: core.MustMoney(amount), Status: "OK", CardNumber: "*7197"}
}

func fixture() *memory.Store {
	return memory.NewStore(
		rec("29.10.2021", "Супермаркеты", "Колхоз", "-100.00"),
		rec("15.09.2021", "Супермаркеты", "Пятёрочка", "-250.50"),
		rec("30.07.2021", "Супермаркеты", "Магнит", "-10.00"),
		rec("29.07.2021", "Супермаркеты", "Перекрёсток", "-999.00"),
		rec("20.10.2021", "Такси", "Яндекс Такси", "-300.00"),
		rec("", "Супермаркеты", "без даты", "-1.00"),
	)
}

var fixedNow = time.Date(2021, 10, 30, 15, 12, 30, 0, time.Local)

func newService(t *testing.T, sink report.Sink) *ReportService {
	t.Helper()
	path := filepath.Join(t.TempDir(), "user_settings.json")
	if err := os.WriteFile(path, []byte(`{"user_currencies": ["USD"], "user_stocks": []}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewReportService(Deps{
		Ledger:       fixture(),
		SettingsPath: path,
		Rates:        staticRates{},
		Sink:         sink,
		Now:          func() time.Time { return fixedNow },
	})
}

func TestDashboard(t *testing.T) {
	s := newService(t, nil)
	got, err := s.Dashboard(context.Background(), "2021-10-30 15:12:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Greeting != "Добрый день" {
		t.Fatalf("unexpected greeting %q", got.Greeting)
	}
	if len(got.Cards) != 1 || !got.Cards[0].TotalSpent.Equal(core.MustMoney("400")) || !got.Cards[0].Cashback.Equal(core.MustMoney("4")) {
		t.Fatalf("unexpected cards %+v", got.Cards)
	}
	if len(got.CurrencyRates) != 1 || got.CurrencyRates[0].Currency != "USD" {
		t.Fatalf("unexpected rates %+v", got.CurrencyRates)
	}
	if got.StockPrices == nil || len(got.StockPrices) != 0 {
		t.Fatalf("expected no stock prices, got %+v", got.StockPrices)
	}
}

func TestDashboardBadReference(t *testing.T) {
	s := newService(t, nil)
	if _, err := s.Dashboard(context.Background(), "30/10/2021"); !errors.Is(err, core.ErrDateFormat) {
		t.Fatalf("expected ErrDateFormat, got %v", err)
	}
}

func TestSearchJSON(t *testing.T) {
	s := newService(t, nil)
	out, err := s.SearchJSON(context.Background(), "ТАКСИ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Яндекс Такси") || !strings.HasPrefix(out, "[\n  {") {
		t.Fatalf("unexpected JSON %s", out)
	}
	var back []core.Record
	if err := json.Unmarshal([]byte(out), &back); err != nil || len(back) != 1 {
		t.Fatalf("round trip failed: %v %d", err, len(back))
	}

	none, err := s.SearchJSON(context.Background(), "ресторан")
	if err != nil || none != "[]" {
		t.Fatalf("expected empty list, got %q %v", none, err)
	}
}

func TestSpendingByCategoryWritesReport(t *testing.T) {
	sink := &recordingSink{}
	s := newService(t, sink)

	got, err := s.SpendingByCategory(context.Background(), "Супермаркеты", "2021-10-30 15:12:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records in window, got %d", len(got))
	}
	if got[2].Description != "Магнит" {
		t.Fatalf("window start should be inclusive of 30.07.2021, got %+v", got)
	}

	if len(sink.reports) != 1 || sink.reports[0].Operation != OpSpendingByCategory {
		t.Fatalf("unexpected sink writes %+v", sink.reports)
	}
	if name := sink.reports[0].ResolvedName(); name != "report_spending_by_category_20211030_151230.json" {
		t.Fatalf("unexpected report name %q", name)
	}
}

func TestSpendingByCategoryDefaultsToNow(t *testing.T) {
	s := newService(t, nil)
	got, err := s.SpendingByCategory(context.Background(), "Такси", "")
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one taxi ride, got %v %v", got, err)
	}
}

func TestSinkFailureDoesNotFailRequest(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	s := newService(t, sink)
	got, err := s.CategoryTotals(context.Background(), "Супермаркеты", "2021-10-30 15:12:30")
	if err != nil {
		t.Fatalf("sink failure leaked: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Супермаркеты" || !got[0].Total.Equal(core.MustMoney("-360.5")) {
		t.Fatalf("unexpected totals %+v", got)
	}
	if len(sink.reports) != 1 || sink.reports[0].Operation != OpCategoryTotals {
		t.Fatalf("expected one attempted write, got %+v", sink.reports)
	}
}

func TestLedgerErrorPropagates(t *testing.T) {
	store := fixture()
	boom := errors.New("sheet unavailable")
	store.FailWith(boom)
	s := NewReportService(Deps{Ledger: store})
	if _, err := s.Search(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected ledger error, got %v", err)
	}
	if _, err := NewReportService(Deps{}).Search(context.Background(), "x"); err == nil {
		t.Fatal("expected error without a ledger")
	}
}
