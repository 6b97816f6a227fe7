// Package worker archives report messages consumed from AMQP into the
// SQLite report store.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"finreport/internal/amqp"
	"finreport/internal/log"
	"finreport/internal/storage"
)

// Archiver stores reports under their message ID.
type Archiver interface {
	Archive(ctx context.Context, rep storage.StoredReport) (bool, error)
}

type ArchiveWorker struct {
	store  Archiver
	logger *log.Logger
}

func NewArchiveWorker(store Archiver, logger *log.Logger) *ArchiveWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ArchiveWorker{store: store, logger: logger.WithComponent(log.ComponentReports)}
}

// HandleReportMessage archives msg. Malformed messages are marked with
// amqp.ErrDiscard so they are not redelivered; storage failures are
// returned as is and the message is requeued.
func (w *ArchiveWorker) HandleReportMessage(ctx context.Context, msg *amqp.ReportMessage) error {
	switch {
	case msg.ID == "":
		return fmt.Errorf("%w: missing id", amqp.ErrDiscard)
	case msg.Operation == "":
		return fmt.Errorf("%w: message %s has no operation", amqp.ErrDiscard, msg.ID)
	case len(msg.Payload) == 0 || !json.Valid(msg.Payload):
		return fmt.Errorf("%w: message %s has an invalid payload", amqp.ErrDiscard, msg.ID)
	}

	inserted, err := w.store.Archive(ctx, storage.StoredReport{
		ID:        msg.ID,
		Operation: msg.Operation,
		Name:      msg.Name,
		CreatedAt: msg.CreatedAt,
		Payload:   msg.Payload,
	})
	if err != nil {
		return fmt.Errorf("archive report %s: %w", msg.ID, err)
	}

	if !inserted {
		w.logger.InfoContext(ctx, "Report already archived, skipping", "id", msg.ID)
		return nil
	}
	w.logger.InfoContext(ctx, "Report archived from queue",
		"id", msg.ID,
		log.FieldOperation, msg.Operation,
		log.FieldReport, msg.Name)
	return nil
}
