// Package google reads the ledger from a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finreport/internal/core"
	"finreport/internal/log"
	"finreport/internal/sheets"
)

// DefaultSheetName is used when GOOGLE_SHEET_NAME is unset.
const DefaultSheetName = "Operations"

// ErrMissingSpreadsheetID is returned when no spreadsheet ID is configured.
var ErrMissingSpreadsheetID = errors.New("missing GOOGLE_SPREADSHEET_ID")

// Client reads ledger rows through the Sheets v4 values API.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ sheets.LedgerReader = (*Client)(nil)

// Options configures New.
type Options struct {
	SpreadsheetID string
	SheetName     string
	Logger        *log.Logger
}

// New builds a client. clientOpts are passed straight to the Sheets service,
// so callers (and tests) choose credentials and endpoint.
func New(ctx context.Context, opts Options, clientOpts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, ErrMissingSpreadsheetID
	}
	name := strings.TrimSpace(opts.SheetName)
	if name == "" {
		name = DefaultSheetName
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: id,
		sheetName:     name,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

// NewFromEnv creates a client authenticated with service account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func NewFromEnv(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, ErrMissingSpreadsheetID
	}
	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	return New(ctx, opts,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
}

func credentialsFromEnv() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// ReadLedger fetches <sheet>!A:Z. The first row is the header. API errors
// are returned as is.
func (c *Client) ReadLedger(ctx context.Context) ([]core.Record, error) {
	rng := fmt.Sprintf("%s!A:Z", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", rng, err)
	}

	values := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		values = append(values, toStrings(row))
	}
	header, rows := sheets.Split(values)
	if len(header) == 0 {
		c.logger.WarnContext(ctx, "Ledger sheet is empty", log.FieldSource, rng)
		return []core.Record{}, nil
	}

	records := sheets.ParseRows(header, rows, func(row int, value string) {
		c.logger.WarnContext(ctx, "Unparseable amount, using zero",
			log.FieldSource, rng, "row", row+2, "value", value)
	})
	c.logger.DebugContext(ctx, "Ledger loaded", log.FieldSource, rng, log.FieldRecords, len(records))
	return records, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}
