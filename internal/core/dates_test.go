package core

import (
	"errors"
	"testing"
	"time"
)

func TestToDisplayDate(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"2023-12-31", "31.12.2023"},
		{"2024-01-01", "01.01.2024"},
		{"1999-12-31", "31.12.1999"},
		{"2023-09-05", "05.09.2023"},
		{"2021-10-30 15:12:30", "30.10.2021"},
		{"2023-1-1", "2023-1-1"},     // too short
		{"2023-02-30", "2023-02-30"}, // no such day
		{"2023-13-01", "2023-13-01"},
		{"2023-00-01", "2023-00-01"},
		{"", ""},
		{"not a date at all", "not a date at all"},
	}
	for _, tc := range cases {
		if got := ToDisplayDate(tc.in); got != tc.out {
			t.Fatalf("ToDisplayDate(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestParseDisplayDate(t *testing.T) {
	got, err := ParseDisplayDate("15.01.2023")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Year() != 2023 || got.Month() != time.January || got.Day() != 15 {
		t.Fatalf("unexpected date: %v", got)
	}
	for _, bad := range []string{"2023-01-15", "31.02.2023", "", "15/01/2023"} {
		if _, err := ParseDisplayDate(bad); !errors.Is(err, ErrDateFormat) {
			t.Fatalf("%q: expected ErrDateFormat, got %v", bad, err)
		}
	}
}

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("2021-12-31 16:44:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Hour() != 16 || ref.Minute() != 44 || ref.Day() != 31 {
		t.Fatalf("unexpected reference: %v", ref)
	}
	if _, err := ParseReference("2024-03-01"); err != nil {
		t.Fatalf("date-only reference should parse: %v", err)
	}
	if _, err := ParseReference("31.12.2021"); !errors.Is(err, ErrDateFormat) {
		t.Fatalf("expected ErrDateFormat, got %v", err)
	}
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		in   time.Time
		n    int
		want time.Time
	}{
		{NewDate(2024, 5, 31), -3, NewDate(2024, 2, 29)},
		{NewDate(2023, 5, 31), -3, NewDate(2023, 2, 28)},
		{NewDate(2024, 3, 1), -3, NewDate(2023, 12, 1)},
		{NewDate(2021, 10, 30), -3, NewDate(2021, 7, 30)},
		{NewDate(2024, 1, 31), 1, NewDate(2024, 2, 29)},
	}
	for _, tc := range cases {
		if got := AddMonths(tc.in, tc.n); !got.Equal(tc.want) {
			t.Fatalf("AddMonths(%v, %d) = %v, want %v", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestWindowDisplayBounds(t *testing.T) {
	ref := time.Date(2021, 12, 31, 16, 44, 0, 0, time.UTC)

	start, end := MonthToDate(ref).DisplayBounds()
	if start != "01.12.2021" || end != "31.12.2021" {
		t.Fatalf("month to date bounds: %s..%s", start, end)
	}

	start, end = LastMonths(ref, 3).DisplayBounds()
	if start != "30.09.2021" || end != "31.12.2021" {
		t.Fatalf("last months bounds: %s..%s", start, end)
	}
}

// NewDate builds a UTC midnight date.
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
