// Package sheets maps spreadsheet rows to ledger records and defines the
// ports the ledger adapters implement.
package sheets

import (
	"strings"

	"finreport/internal/core"
)

// Ledger column headers as exported by the bank.
const (
	ColOperationDate = "Дата операции"
	ColPaymentDate   = "Дата платежа"
	ColCardNumber    = "Номер карты"
	ColStatus        = "Статус"
	ColAmount        = "Сумма платежа"
	ColCurrency      = "Валюта платежа"
	ColCategory      = "Категория"
	ColMCC           = "MCC"
	ColDescription   = "Описание"
)

type field int

const (
	fieldExtra field = iota
	fieldOperationDate
	fieldPaymentDate
	fieldCardNumber
	fieldStatus
	fieldAmount
	fieldCurrency
	fieldCategory
	fieldMCC
	fieldDescription
)

// aliases maps normalised header names to record fields.
var aliases = map[string]field{
	normalizeHeader(ColOperationDate): fieldOperationDate,
	normalizeHeader(ColPaymentDate):   fieldPaymentDate,
	normalizeHeader(ColCardNumber):    fieldCardNumber,
	normalizeHeader(ColStatus):        fieldStatus,
	normalizeHeader(ColAmount):        fieldAmount,
	normalizeHeader(ColCurrency):      fieldCurrency,
	normalizeHeader(ColCategory):      fieldCategory,
	normalizeHeader(ColMCC):           fieldMCC,
	normalizeHeader(ColDescription):   fieldDescription,
	"operation date":                  fieldOperationDate,
	"payment date":                    fieldPaymentDate,
	"date":                            fieldPaymentDate,
	"card number":                     fieldCardNumber,
	"card":                            fieldCardNumber,
	"status":                          fieldStatus,
	"amount":                          fieldAmount,
	"payment amount":                  fieldAmount,
	"currency":                        fieldCurrency,
	"category":                        fieldCategory,
	"description":                     fieldDescription,
}

// ParseRows converts a header row and data rows into records.
//
// Columns are matched by header name, case-insensitively. Unknown columns
// are kept in Record.Extra. Rows with every cell blank are skipped. An amount
// that does not parse is reported through badAmount (if non-nil) and the
// record keeps a zero amount.
func ParseRows(header []string, rows [][]string, badAmount func(row int, value string)) []core.Record {
	fields := make([]field, len(header))
	for i, h := range header {
		fields[i] = aliases[normalizeHeader(h)]
	}

	out := make([]core.Record, 0, len(rows))
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		var r core.Record
		for col, cell := range row {
			if col >= len(fields) {
				break
			}
			value := strings.TrimSpace(cell)
			switch fields[col] {
			case fieldOperationDate:
				r.OperationDate = value
			case fieldPaymentDate:
				r.PaymentDate = value
			case fieldCardNumber:
				r.CardNumber = value
			case fieldStatus:
				r.Status = value
			case fieldAmount:
				if value == "" {
					continue
				}
				m, err := core.ParseMoney(value)
				if err != nil {
					if badAmount != nil {
						badAmount(i, value)
					}
					continue
				}
				r.Amount = m
			case fieldCurrency:
				r.Currency = value
			case fieldCategory:
				r.Category = value
			case fieldMCC:
				r.MCC = value
			case fieldDescription:
				r.Description = value
			default:
				name := strings.TrimSpace(header[col])
				if name == "" || value == "" {
					continue
				}
				if r.Extra == nil {
					r.Extra = map[string]string{}
				}
				r.Extra[name] = value
			}
		}
		out = append(out, r)
	}
	return out
}

// Split separates the header row from the data rows.
func Split(values [][]string) (header []string, rows [][]string) {
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], values[1:]
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
