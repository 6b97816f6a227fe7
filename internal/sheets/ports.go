package sheets

import (
	"context"

	"finreport/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerReader returns every transaction row of a ledger.
	LedgerReader interface {
		ReadLedger(ctx context.Context) ([]core.Record, error)
	}

	// LedgerReaderFunc adapts a function to LedgerReader.
	LedgerReaderFunc func(ctx context.Context) ([]core.Record, error)
)

func (f LedgerReaderFunc) ReadLedger(ctx context.Context) ([]core.Record, error) {
	return f(ctx)
}
