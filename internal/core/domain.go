package core

import (
	"errors"
	"fmt"
)

// Status values seen in the ledger.
const (
	StatusOK      = "OK"
	StatusPending = "PENDING"
	StatusFailed  = "FAILED"
)

type (
	// Record is one transaction row of the ledger.
	Record struct {
		OperationDate string            `json:"operation_date,omitempty"`
		PaymentDate   string            `json:"payment_date"`
		CardNumber    string            `json:"card_number"`
		Status        string            `json:"status"`
		Amount        Money             `json:"amount"`
		Currency      string            `json:"currency,omitempty"`
		Category      string            `json:"category"`
		MCC           string            `json:"mcc,omitempty"`
		Description   string            `json:"description"`
		Extra         map[string]string `json:"extra,omitempty"` // columns without a dedicated field
	}

	// CardSummary aggregates the expenses of a single card.
	CardSummary struct {
		LastDigits string `json:"last_digits"`
		TotalSpent Money  `json:"total_spent"`
		Cashback   Money  `json:"cashback"`
	}

	// TopEntry is a verbatim copy of a record that ranked in the top N by |amount|.
	TopEntry struct {
		Date        string `json:"date"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Description string `json:"description"`
	}

	// CategoryAmount is the sum of amounts for one category.
	CategoryAmount struct {
		Category string `json:"category"`
		Total    Money  `json:"total"`
	}

	// Settings lists the currencies and tickers the user follows.
	Settings struct {
		UserCurrencies []string `json:"user_currencies"`
		UserStocks     []string `json:"user_stocks"`
	}

	CurrencyRate struct {
		Currency string `json:"currency"`
		Rate     *Money `json:"rate,omitempty"`
		Error    string `json:"error,omitempty"`
	}

	StockPrice struct {
		Stock string `json:"stock"`
		Price *Money `json:"price,omitempty"`
		Error string `json:"error,omitempty"`
	}

	// Summary is the dashboard view.
	Summary struct {
		Greeting        string         `json:"greeting"`
		Cards           []CardSummary  `json:"cards"`
		TopTransactions []TopEntry     `json:"top_transactions"`
		CurrencyRates   []CurrencyRate `json:"currency_rates"`
		StockPrices     []StockPrice   `json:"stock_prices"`
	}
)

var (
	ErrDateFormat     = errors.New("invalid date format")
	ErrEmptyInput     = errors.New("empty transaction list")
	ErrUpstreamData   = errors.New("malformed upstream payload")
	ErrUpstreamStatus = errors.New("unexpected upstream status")
)

// RecordDateError reports a record whose payment date is present but not DD.MM.YYYY.
type RecordDateError struct {
	Index int
	Value string
}

func (e *RecordDateError) Error() string {
	return fmt.Sprintf("record %d: payment date %q is not DD.MM.YYYY", e.Index, e.Value)
}

func (e *RecordDateError) Unwrap() error {
	return ErrDateFormat
}
