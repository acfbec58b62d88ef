package worker

import (
	"context"
	"fmt"
	"log/slog"

	"splitlens/internal/amqp"
	"splitlens/internal/core"
	"splitlens/internal/services"
	"splitlens/internal/session"
)

// TransactionExporter pushes imported transactions to an external sink.
type TransactionExporter interface {
	ExportTransactions(ctx context.Context, sessionID string, txs []core.Transaction) error
}

// ImportWorker consumes queued CSV imports and materializes them into
// their sessions, optionally exporting the result.
type ImportWorker struct {
	sessions *services.SessionService
	store    session.Reader
	exporter TransactionExporter
}

func NewImportWorker(sessions *services.SessionService, store session.Reader, exporter TransactionExporter) *ImportWorker {
	return &ImportWorker{
		sessions: sessions,
		store:    store,
		exporter: exporter,
	}
}

// HandleImportMessage processes a single import job notification.
func (w *ImportWorker) HandleImportMessage(ctx context.Context, msg amqp.ImportJobMessage) error {
	slog.InfoContext(ctx, "Processing import job",
		"job_id", msg.JobID,
		"session_id", msg.SessionID)

	if err := w.sessions.ProcessImportJob(ctx, msg.JobID); err != nil {
		return fmt.Errorf("process import job: %w", err)
	}

	if w.exporter == nil {
		return nil
	}

	sess, err := w.store.Get(ctx, msg.SessionID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load session for export",
			"session_id", msg.SessionID, "error", err)
		return nil // import succeeded, export is best-effort
	}

	if err := w.exporter.ExportTransactions(ctx, sess.ID, sess.Transactions); err != nil {
		slog.ErrorContext(ctx, "Failed to export transactions",
			"session_id", sess.ID, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Exported imported transactions",
		"session_id", sess.ID,
		"transactions", len(sess.Transactions))

	return nil
}
