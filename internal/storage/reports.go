// Package storage archives generated reports in SQLite.
//
// The archive is write-mostly: every report sink write becomes one row, keyed
// by a random UUID. Nothing here is read back by the reporting pipeline.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"finreport/internal/log"
	"finreport/internal/report"
)

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("report not found")

// timeLayout sorts lexically in the same order as the instants it encodes.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// StoredReport is an archived report row.
type StoredReport struct {
	ID        string
	Operation string
	Name      string
	CreatedAt time.Time
	Payload   []byte
}

// ReportStore is a report.Sink backed by SQLite.
type ReportStore struct {
	db     *sql.DB
	logger *log.Logger
	newID  func() string
}

var _ report.Sink = (*ReportStore)(nil)

// NewReportStore opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewReportStore(dbPath string, logger *log.Logger) (*ReportStore, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &ReportStore{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		newID:  func() string { return uuid.NewString() },
	}, nil
}

// Close releases the database.
func (s *ReportStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *ReportStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Write archives r.
func (s *ReportStore) Write(ctx context.Context, r report.Report) error {
	_, err := s.Save(ctx, r)
	return err
}

// Save archives r and returns its new ID.
func (s *ReportStore) Save(ctx context.Context, r report.Report) (string, error) {
	body, err := report.Encode(r.Payload)
	if err != nil {
		return "", err
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	id := s.newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, operation, name, created_at, payload) VALUES (?, ?, ?, ?, ?)`,
		id, r.Operation, r.ResolvedName(), created.UTC().Format(timeLayout), string(body))
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}

	s.logger.InfoContext(ctx, "Report archived",
		"id", id, log.FieldOperation, r.Operation, log.FieldReport, r.ResolvedName())
	return id, nil
}

// Archive inserts an already-identified report, as received from the
// broker. It reports false when the ID is already stored, so redelivered
// messages are harmless.
func (s *ReportStore) Archive(ctx context.Context, rep StoredReport) (bool, error) {
	if rep.ID == "" {
		return false, errors.New("archive report: missing id")
	}
	created := rep.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reports (id, operation, name, created_at, payload) VALUES (?, ?, ?, ?, ?)`,
		rep.ID, rep.Operation, rep.Name, created.UTC().Format(timeLayout), string(rep.Payload))
	if err != nil {
		return false, fmt.Errorf("insert report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Get returns the report with the given ID.
func (s *ReportStore) Get(ctx context.Context, id string) (StoredReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, operation, name, created_at, payload FROM reports WHERE id = ?`, id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredReport{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rep, err
}

// List returns the newest reports first. A blank operation lists all
// operations; limit <= 0 means no limit.
func (s *ReportStore) List(ctx context.Context, operation string, limit int) ([]StoredReport, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, name, created_at, payload FROM reports
		 WHERE (? = '' OR operation = ?)
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`, operation, operation, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []StoredReport{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(sc scanner) (StoredReport, error) {
	var (
		rep     StoredReport
		created string
		payload string
	)
	if err := sc.Scan(&rep.ID, &rep.Operation, &rep.Name, &created, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredReport{}, err
		}
		return StoredReport{}, fmt.Errorf("scan report: %w", err)
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return StoredReport{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	rep.CreatedAt = t
	rep.Payload = []byte(payload)
	return rep, nil
}
