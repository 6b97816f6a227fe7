package memory

import (
	"context"
	"errors"
	"testing"

	"finreport/internal/core"
)

func TestStoreReadIsCopy(t *testing.T) {
	s := NewStore(core.Record{Category: "Такси"})
	got, err := s.ReadLedger(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected read %v %v", got, err)
	}
	got[0].Category = "changed"

	again, _ := s.ReadLedger(context.Background())
	if again[0].Category != "Такси" {
		t.Fatalf("store mutated through returned slice")
	}

	s.Append(core.Record{Category: "Фастфуд"})
	if again, _ = s.ReadLedger(context.Background()); len(again) != 2 {
		t.Fatalf("expected 2 records after append, got %d", len(again))
	}
}

func TestStoreEmptyAndFailure(t *testing.T) {
	s := NewStore()
	got, err := s.ReadLedger(context.Background())
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil ledger, got %#v %v", got, err)
	}

	boom := errors.New("boom")
	s.FailWith(boom)
	if _, err := s.ReadLedger(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.FailWith(nil)
	if _, err := s.ReadLedger(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
