// Package file reads the ledger from a local .xlsx or .csv export.
//
// A missing, empty or unreadable file yields an empty ledger and a warning
// log rather than an error; the reports downstream then behave as if there
// were no transactions.
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"finreport/internal/core"
	"finreport/internal/log"
	"finreport/internal/sheets"
)

// ErrUnsupportedFormat is returned by readRows for extensions other than
// .xlsx and .csv.
var ErrUnsupportedFormat = errors.New("unsupported ledger format")

// Reader loads records from a spreadsheet file on every call.
type Reader struct {
	path   string
	logger *log.Logger
}

var _ sheets.LedgerReader = (*Reader)(nil)

// NewReader returns a reader for path. The file is not opened until
// ReadLedger is called.
func NewReader(path string, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.Discard()
	}
	return &Reader{path: path, logger: logger.WithComponent(log.ComponentSheets)}
}

// ReadLedger parses the file. The error is always nil; failures are logged.
func (r *Reader) ReadLedger(ctx context.Context) ([]core.Record, error) {
	values, err := readRows(r.path)
	if err != nil {
		r.logger.WarnContext(ctx, "Ledger file unreadable, using empty ledger",
			log.FieldSource, r.path, log.FieldError, err.Error())
		return []core.Record{}, nil
	}

	header, rows := sheets.Split(values)
	if len(header) == 0 {
		r.logger.WarnContext(ctx, "Ledger file is empty", log.FieldSource, r.path)
		return []core.Record{}, nil
	}

	records := sheets.ParseRows(header, rows, func(row int, value string) {
		r.logger.WarnContext(ctx, "Unparseable amount, using zero",
			log.FieldSource, r.path, "row", row+2, "value", value)
	})
	r.logger.DebugContext(ctx, "Ledger loaded", log.FieldSource, r.path, log.FieldRecords, len(records))
	return records, nil
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetsList := f.GetSheetList()
	if len(sheetsList) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheetsList[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetsList[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer fh.Close()

	return parseCSV(fh)
}

func parseCSV(src io.Reader) ([][]string, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	first := true
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if first {
			// Excel exports prepend a BOM to the first header cell.
			if len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			}
			first = false
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
