// Package core holds the ledger domain types and the date and money helpers
// shared by every view.
//
// Amounts are decimal, never float: a spreadsheet value of 1234.56 stays
// exact through sums, divisions, and rounding.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed monetary amount. Negative values are expenses.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MoneyFromFloat converts a float, as produced by spreadsheet cells, to Money.
func MoneyFromFloat(f float64) Money {
	return Money{Decimal: decimal.NewFromFloat(f)}
}

// MustMoney parses s and panics on failure. Intended for fixtures and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney parses a spreadsheet amount.
//
// Accepts a leading sign, dot or comma decimal separators, and spaces
// (including non-breaking ones) used as thousands separators:
//
//	ParseMoney("-1 234,56") -> -1234.56
//	ParseMoney("+300")      -> 300
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimPrefix(s, "+")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

// Round2 rounds half away from zero to two decimal places.
func (m Money) Round2() Money {
	return Money{Decimal: m.Decimal.Round(2)}
}

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	return Money{Decimal: m.Decimal.Abs()}
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

// IsExpense reports whether the amount is strictly negative.
func (m Money) IsExpense() bool {
	return m.Decimal.IsNegative()
}

// Equal compares amounts numerically, so 1500 equals 1500.00.
func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// MarshalJSON writes a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Decimal.UnmarshalJSON(b)
}
