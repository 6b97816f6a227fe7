// Package memory is an in-memory ledger used by tests and the demo server.
package memory

import (
	"context"
	"sync"

	"finreport/internal/core"
	"finreport/internal/sheets"
)

// Store holds a ledger in memory. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []core.Record
	err     error
}

var _ sheets.LedgerReader = (*Store)(nil)

// NewStore returns a store seeded with a copy of records.
func NewStore(records ...core.Record) *Store {
	s := &Store{}
	s.Replace(records)
	return s
}

// Replace swaps the whole ledger.
func (s *Store) Replace(records []core.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]core.Record(nil), records...)
}

// Append adds records at the end.
func (s *Store) Append(records ...core.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// FailWith makes subsequent reads return err; nil clears it.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ReadLedger returns a copy of the stored ledger.
func (s *Store) ReadLedger(ctx context.Context) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append(make([]core.Record, 0, len(s.records)), s.records...), nil
}
