package core

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts used across the ledger.
const (
	DisplayLayout   = "02.01.2006"
	ISOLayout       = "2006-01-02 15:04:05"
	ISODateLayout   = "2006-01-02"
	isoSignificance = 10
)

// ToDisplayDate converts "YYYY-MM-DD..." to "DD.MM.YYYY".
//
// Only the first ten characters are read. If the reassembled value is not a
// real calendar date the input is returned unchanged, so callers must not
// assume the result is in display format.
func ToDisplayDate(isoLike string) string {
	if len(isoLike) < isoSignificance {
		return isoLike
	}
	year, month, day := isoLike[0:4], isoLike[5:7], isoLike[8:10]
	display := day + "." + month + "." + year
	if _, err := time.Parse(DisplayLayout, display); err != nil {
		return isoLike
	}
	return display
}

// ParseDisplayDate strictly parses a DD.MM.YYYY value.
func ParseDisplayDate(s string) (time.Time, error) {
	t, err := time.Parse(DisplayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrDateFormat, s, err)
	}
	return t, nil
}

// FormatISO renders t as "YYYY-MM-DD HH:MM:SS".
func FormatISO(t time.Time) string {
	return t.Format(ISOLayout)
}

// ParseReference parses a reference instant given as "YYYY-MM-DD HH:MM:SS"
// or "YYYY-MM-DD". The result is in the local time zone.
func ParseReference(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{ISOLayout, ISODateLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: reference %q: want YYYY-MM-DD HH:MM:SS", ErrDateFormat, s)
}

// Window is an inclusive range of calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthToDate returns [first day of t's month, t].
func MonthToDate(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Window{Start: start, End: t}
}

// LastMonths returns the window that ends at end and starts n calendar months
// earlier. The start day is clamped to the length of the target month, so
// 31 May minus 3 months is 28 (or 29) February.
func LastMonths(end time.Time, n int) Window {
	return Window{Start: AddMonths(end, -n), End: end}
}

// AddMonths shifts t by n calendar months keeping the time of day and
// clamping the day to the end of the target month.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// DisplayBounds converts both window bounds to display format the way the
// ledger views do: format as ISO, then ToDisplayDate.
func (w Window) DisplayBounds() (start, end string) {
	return ToDisplayDate(FormatISO(w.Start)), ToDisplayDate(FormatISO(w.End))
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
