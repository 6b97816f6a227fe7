package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"finreport/internal/log"
)

// DefaultDir is where FileSink writes when REPORT_DIR is unset.
const DefaultDir = "reports"

// FileSink writes each report as a JSON file in a directory.
type FileSink struct {
	dir    string
	logger *log.Logger
}

var _ Sink = (*FileSink)(nil)

// NewFileSink returns a sink writing into dir, created on first write.
func NewFileSink(dir string, logger *log.Logger) *FileSink {
	if dir == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &FileSink{dir: dir, logger: logger.WithComponent(log.ComponentReports)}
}

// Dir returns the target directory.
func (s *FileSink) Dir() string { return s.dir }

func (s *FileSink) Write(ctx context.Context, r Report) error {
	body, err := Encode(r.Payload)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	path := filepath.Join(s.dir, filepath.Base(r.ResolvedName()))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename report: %w", err)
	}

	s.logger.InfoContext(ctx, "Report written",
		log.FieldOperation, r.Operation, log.FieldReport, path)
	return nil
}
