package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"splitlens/internal/amqp"
	"splitlens/internal/core"
	"splitlens/internal/csvio"
	"splitlens/internal/session"
	"splitlens/internal/stores"
)

// SessionService orchestrates session lifecycle, CSV imports and store
// mapping confirmation across the session store and AMQP.
type SessionService struct {
	store      session.Store
	amqpClient *amqp.Client
}

func NewSessionService(store session.Store, amqpClient *amqp.Client) *SessionService {
	return &SessionService{
		store:      store,
		amqpClient: amqpClient,
	}
}

func (s *SessionService) GetSession(ctx context.Context, id string) (session.Session, error) {
	return s.store.Get(ctx, id)
}

func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// ImportCSV creates a session from an uploaded CSV, parsing it inline.
// The upload replaces any previous transactions, so mappings start empty.
func (s *SessionService) ImportCSV(ctx context.Context, r io.Reader) (session.Session, csvio.ImportResult, error) {
	result, err := csvio.Parse(r)
	if err != nil {
		return session.Session{}, csvio.ImportResult{}, fmt.Errorf("parse csv: %w", err)
	}

	now := time.Now().UTC()
	sess := session.Session{
		ID:            uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Transactions:  result.Transactions,
		StoreMappings: core.StoreMapping{},
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return session.Session{}, csvio.ImportResult{}, fmt.Errorf("save session: %w", err)
	}

	slog.InfoContext(ctx, "Imported CSV session",
		"session_id", sess.ID,
		"transactions", len(result.Transactions),
		"skipped_rows", result.SkippedRows)

	return sess, result, nil
}

// EnqueueImport persists the raw CSV as a pending job and publishes a
// notification for the worker. The session is created empty up front so
// its ID can be returned immediately.
func (s *SessionService) EnqueueImport(ctx context.Context, fileName string, payload []byte) (session.ImportJob, error) {
	now := time.Now().UTC()
	sess := session.Session{
		ID:            uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
		StoreMappings: core.StoreMapping{},
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return session.ImportJob{}, fmt.Errorf("save session: %w", err)
	}

	job := session.ImportJob{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		FileName:  fileName,
		Payload:   payload,
		Status:    session.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.EnqueueJob(ctx, job); err != nil {
		return session.ImportJob{}, fmt.Errorf("enqueue import job: %w", err)
	}

	// Publish async notification (non-blocking on failure: the job is
	// persisted and can be retried).
	if err := s.publishImportJob(ctx, job.ID, job.SessionID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish import job message",
			"job_id", job.ID, "error", err)
	}

	return job, nil
}

func (s *SessionService) publishImportJob(ctx context.Context, jobID, sessionID string) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping import job message")
		return nil
	}
	return s.amqpClient.PublishImportJob(ctx, jobID, sessionID)
}

// ImportJobStatus reports the state of a queued import.
func (s *SessionService) ImportJobStatus(ctx context.Context, jobID string) (session.ImportJob, error) {
	return s.store.GetJob(ctx, jobID)
}

// ProcessImportJob parses a stored CSV payload and writes its
// transactions into the owning session. Called by the worker.
func (s *SessionService) ProcessImportJob(ctx context.Context, jobID string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load import job: %w", err)
	}
	if job.Status == session.JobDone {
		slog.InfoContext(ctx, "Import job already done, skipping", "job_id", jobID)
		return nil
	}

	if err := s.store.MarkJob(ctx, jobID, session.JobProcessing, ""); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}

	result, err := csvio.Parse(bytes.NewReader(job.Payload))
	if err != nil {
		if markErr := s.store.MarkJob(ctx, jobID, session.JobFailed, err.Error()); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark job failed", "job_id", jobID, "error", markErr)
		}
		return fmt.Errorf("parse csv payload: %w", err)
	}

	if err := s.store.UpdateTransactions(ctx, job.SessionID, result.Transactions); err != nil {
		if markErr := s.store.MarkJob(ctx, jobID, session.JobFailed, err.Error()); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark job failed", "job_id", jobID, "error", markErr)
		}
		return fmt.Errorf("save transactions: %w", err)
	}

	if err := s.store.MarkJob(ctx, jobID, session.JobDone, ""); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}

	slog.InfoContext(ctx, "Processed import job",
		"job_id", jobID,
		"session_id", job.SessionID,
		"transactions", len(result.Transactions),
		"skipped_rows", result.SkippedRows)

	return nil
}

// AnalyzeSimilarStores clusters the session's store descriptions.
func (s *SessionService) AnalyzeSimilarStores(ctx context.Context, sessionID string) ([]core.StoreGrouping, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return stores.AnalyzeSimilarStores(sess.Transactions), nil
}

// ApplyMappings persists a confirmed store mapping and rewrites the
// session's transactions to canonical descriptions. Re-applying the
// same mapping is a no-op.
func (s *SessionService) ApplyMappings(ctx context.Context, sessionID string, mapping core.StoreMapping) (session.Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return session.Session{}, err
	}

	merged := sess.StoreMappings.Clone()
	if merged == nil {
		merged = core.StoreMapping{}
	}
	for canonical, variations := range mapping {
		merged[canonical] = append([]string(nil), variations...)
	}

	rewritten := stores.ApplyStoreMappings(sess.Transactions, merged)
	if err := s.store.UpdateTransactions(ctx, sessionID, rewritten); err != nil {
		return session.Session{}, fmt.Errorf("save transactions: %w", err)
	}
	if err := s.store.UpdateMappings(ctx, sessionID, merged); err != nil {
		return session.Session{}, fmt.Errorf("save mappings: %w", err)
	}

	sess.Transactions = rewritten
	sess.StoreMappings = merged
	return sess, nil
}

// MergeStores combines two groupings into one and rewrites the
// session's transactions to the surviving canonical name.
func (s *SessionService) MergeStores(ctx context.Context, sessionID string, g1, g2 core.StoreGrouping) (core.StoreGrouping, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return core.StoreGrouping{}, err
	}

	merged, rewritten := stores.MergeGroups(g1, g2, sess.Transactions)

	mappings := sess.StoreMappings.Clone()
	if mappings == nil {
		mappings = core.StoreMapping{}
	}
	delete(mappings, g1.CanonicalName)
	delete(mappings, g2.CanonicalName)
	mappings[merged.CanonicalName] = merged.Variations

	if err := s.store.UpdateTransactions(ctx, sessionID, rewritten); err != nil {
		return core.StoreGrouping{}, fmt.Errorf("save transactions: %w", err)
	}
	if err := s.store.UpdateMappings(ctx, sessionID, mappings); err != nil {
		return core.StoreGrouping{}, fmt.Errorf("save mappings: %w", err)
	}

	return merged, nil
}

// SplitStores moves the named variations out of a grouping into their
// own group and rewrites the affected transactions.
func (s *SessionService) SplitStores(ctx context.Context, sessionID string, group core.StoreGrouping, namesToSplit []string) (stores.SplitResult, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return stores.SplitResult{}, err
	}

	res := stores.SplitGroup(group, namesToSplit, sess.Transactions)

	mappings := sess.StoreMappings.Clone()
	if mappings == nil {
		mappings = core.StoreMapping{}
	}
	if len(res.Original.Variations) > 0 {
		mappings[res.Original.CanonicalName] = res.Original.Variations
	} else {
		delete(mappings, res.Original.CanonicalName)
	}
	if res.NewGroup.CanonicalName != "" {
		mappings[res.NewGroup.CanonicalName] = res.NewGroup.Variations
	}

	if err := s.store.UpdateTransactions(ctx, sessionID, res.Transactions); err != nil {
		return stores.SplitResult{}, fmt.Errorf("save transactions: %w", err)
	}
	if err := s.store.UpdateMappings(ctx, sessionID, mappings); err != nil {
		return stores.SplitResult{}, fmt.Errorf("save mappings: %w", err)
	}

	return res, nil
}
