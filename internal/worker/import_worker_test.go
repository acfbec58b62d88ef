package worker

import (
	"context"
	"errors"
	"testing"

	"splitlens/internal/amqp"
	"splitlens/internal/core"
	"splitlens/internal/services"
	"splitlens/internal/session"
	"splitlens/internal/session/memory"
)

const sampleCSV = `Date,Description,Category,Cost,Currency,Alice,Bob
2025-02-24,Mayuri,Groceries,42.56,USD,21.28,-21.28
`

type fakeExporter struct {
	calls     int
	sessionID string
	txs       []core.Transaction
	err       error
}

func (f *fakeExporter) ExportTransactions(_ context.Context, sessionID string, txs []core.Transaction) error {
	f.calls++
	f.sessionID = sessionID
	f.txs = txs
	return f.err
}

func enqueue(t *testing.T, svc *services.SessionService) session.ImportJob {
	t.Helper()
	job, err := svc.EnqueueImport(context.Background(), "upload.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("EnqueueImport: %v", err)
	}
	return job
}

func TestHandleImportMessage(t *testing.T) {
	store := memory.New()
	svc := services.NewSessionService(store, nil)
	exporter := &fakeExporter{}
	w := NewImportWorker(svc, store, exporter)
	ctx := context.Background()

	job := enqueue(t, svc)
	msg := amqp.ImportJobMessage{JobID: job.ID, SessionID: job.SessionID}

	if err := w.HandleImportMessage(ctx, msg); err != nil {
		t.Fatalf("HandleImportMessage: %v", err)
	}

	done, _ := svc.ImportJobStatus(ctx, job.ID)
	if done.Status != session.JobDone {
		t.Errorf("job status = %q, want done", done.Status)
	}
	if exporter.calls != 1 || exporter.sessionID != job.SessionID {
		t.Errorf("exporter calls = %d for %q", exporter.calls, exporter.sessionID)
	}
	if len(exporter.txs) != 1 {
		t.Errorf("exported %d transactions, want 1", len(exporter.txs))
	}
}

func TestHandleImportMessageWithoutExporter(t *testing.T) {
	store := memory.New()
	svc := services.NewSessionService(store, nil)
	w := NewImportWorker(svc, store, nil)

	job := enqueue(t, svc)
	if err := w.HandleImportMessage(context.Background(), amqp.ImportJobMessage{JobID: job.ID, SessionID: job.SessionID}); err != nil {
		t.Fatalf("HandleImportMessage: %v", err)
	}
}

func TestHandleImportMessageExportFailureIsSwallowed(t *testing.T) {
	store := memory.New()
	svc := services.NewSessionService(store, nil)
	exporter := &fakeExporter{err: errors.New("sheet unavailable")}
	w := NewImportWorker(svc, store, exporter)
	ctx := context.Background()

	job := enqueue(t, svc)
	if err := w.HandleImportMessage(ctx, amqp.ImportJobMessage{JobID: job.ID, SessionID: job.SessionID}); err != nil {
		t.Fatalf("export failure must not fail the job: %v", err)
	}

	done, _ := svc.ImportJobStatus(ctx, job.ID)
	if done.Status != session.JobDone {
		t.Errorf("job status = %q, want done", done.Status)
	}
}

func TestHandleImportMessageUnknownJob(t *testing.T) {
	store := memory.New()
	svc := services.NewSessionService(store, nil)
	w := NewImportWorker(svc, store, nil)

	err := w.HandleImportMessage(context.Background(), amqp.ImportJobMessage{JobID: "nope", SessionID: "nope"})
	if !errors.Is(err, session.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}
