package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
)

// DefaultTopN is the size of the dashboard's top transactions list.
const DefaultTopN = 5

// NoCard is reported as last digits when a record has no card number.
const NoCard = "None"

var hundred = decimal.NewFromInt(100)

// CardSummaries groups expenses by card number.
//
// Only strictly negative amounts count. Cards are listed in ascending card
// number order; a card with no expenses produces no entry.
func CardSummaries(records []core.Record) []core.CardSummary {
	totals := map[string]core.Money{}
	for _, r := range records {
		if !r.Amount.IsExpense() {
			continue
		}
		totals[r.CardNumber] = totals[r.CardNumber].Add(r.Amount)
	}

	cards := make([]string, 0, len(totals))
	for card := range totals {
		cards = append(cards, card)
	}
	sort.Strings(cards)

	out := make([]core.CardSummary, 0, len(cards))
	for _, card := range cards {
		spent := totals[card].Abs().Round2()
		out = append(out, core.CardSummary{
			LastDigits: LastFour(card),
			TotalSpent: spent,
			Cashback:   Cashback(spent),
		})
	}
	return out
}

// Cashback is one percent of the spent amount, rounded to cents.
func Cashback(totalSpent core.Money) core.Money {
	return core.NewMoney(totalSpent.Decimal.Div(hundred)).Round2()
}

// LastFour returns the last four characters of a card number, the whole
// value when shorter, or NoCard when empty.
func LastFour(card string) string {
	if card == "" {
		return NoCard
	}
	r := []rune(card)
	if len(r) <= 4 {
		return card
	}
	return string(r[len(r)-4:])
}

// TopTransactions returns the n records with the greatest absolute amount.
// Ties keep their input order.
func TopTransactions(records []core.Record, n int) []core.TopEntry {
	sorted := make([]core.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount.Abs().GreaterThan(sorted[j].Amount.Abs().Decimal)
	})
	if n < 0 {
		n = 0
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]core.TopEntry, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, core.TopEntry{
			Date:        r.PaymentDate,
			Amount:      r.Amount,
			Category:    r.Category,
			Description: r.Description,
		})
	}
	return out
}
