package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"finreport/internal/report"
)

func newStore(t *testing.T) (*ReportStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "reports.db")
	s, err := NewReportStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSaveAndGet(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	at := time.Date(2021, 10, 30, 15, 12, 30, 0, time.UTC)

	id, err := s.Save(ctx, report.Report{
		Operation: "spending_by_category",
		CreatedAt: at,
		Payload:   []map[string]string{{"Категория": "Супермаркеты"}},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("id is not a uuid: %q", id)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Operation != "spending_by_category" || got.Name != "report_spending_by_category_20211030_151230.json" {
		t.Fatalf("unexpected row %+v", got)
	}
	if !got.CreatedAt.Equal(at) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, at)
	}
	if !strings.Contains(string(got.Payload), "Супермаркеты") {
		t.Fatalf("payload not stored: %s", got.Payload)
	}

	if _, err := s.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	base := time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC)

	for i, op := range []string{"search", "dashboard", "search"} {
		if err := s.Write(ctx, report.Report{Operation: op, CreatedAt: base.Add(time.Duration(i) * time.Hour), Payload: i}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	all, err := s.List(ctx, "", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 reports, got %d (%v)", len(all), err)
	}
	if string(all[0].Payload) != "2" || string(all[2].Payload) != "0" {
		t.Fatalf("not newest first: %s %s", all[0].Payload, all[2].Payload)
	}

	searches, err := s.List(ctx, "search", 1)
	if err != nil || len(searches) != 1 || string(searches[0].Payload) != "2" {
		t.Fatalf("unexpected filtered list %+v %v", searches, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	s, path := newStore(t)
	ctx := context.Background()
	if err := s.Write(ctx, report.Report{Operation: "search", Payload: []string{}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.Close()

	again, err := NewReportStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	if err := again.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	got, err := again.List(ctx, "search", 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected persisted report, got %v %v", got, err)
	}
}

func TestArchiveIsIdempotent(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	rep := StoredReport{
		ID:        "msg-1",
		Operation: "category_totals",
		Name:      "report_category_totals_20211030_151230.json",
		CreatedAt: time.Date(2021, 10, 30, 15, 12, 30, 0, time.UTC),
		Payload:   []byte(`[{"category":"Такси","total":-300}]`),
	}

	inserted, err := s.Archive(ctx, rep)
	if err != nil || !inserted {
		t.Fatalf("first archive: inserted=%v err=%v", inserted, err)
	}
	inserted, err = s.Archive(ctx, rep)
	if err != nil || inserted {
		t.Fatalf("redelivery should be ignored: inserted=%v err=%v", inserted, err)
	}

	got, err := s.Get(ctx, "msg-1")
	if err != nil || string(got.Payload) != string(rep.Payload) {
		t.Fatalf("unexpected archived row %+v %v", got, err)
	}

	if _, err := s.Archive(ctx, StoredReport{Operation: "x"}); err == nil {
		t.Fatal("expected error for missing id")
	}
}
