// Package session defines the session-scoped data that analytics operate
// on and the ports its storage backends implement. A session owns one
// uploaded transaction set plus the confirmed store mapping; the core
// analytics only ever see read-only snapshots of it.
package session

import (
	"context"
	"errors"
	"time"

	"splitlens/internal/core"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrJobNotFound = errors.New("import job not found")
)

// Session is one user upload and its derived state.
type Session struct {
	ID            string             `json:"id"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	Transactions  []core.Transaction `json:"transactions"`
	StoreMappings core.StoreMapping  `json:"storeMappings"`
}

// Clone returns a deep copy safe to hand to the analytics layer.
func (s Session) Clone() Session {
	out := s
	out.Transactions = core.CloneTransactions(s.Transactions)
	out.StoreMappings = s.StoreMappings.Clone()
	return out
}

// JobStatus tracks an asynchronous CSV import through its lifecycle.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// ImportJob is a queued CSV import. The raw payload is persisted with the
// job so the worker can parse it without the uploader staying connected.
type ImportJob struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	FileName  string    `json:"fileName"`
	Payload   []byte    `json:"-"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Ports for session storage backends.
type (
	Reader interface {
		// Get returns an independent snapshot of the session.
		Get(ctx context.Context, id string) (Session, error)
	}

	Writer interface {
		Put(ctx context.Context, s Session) error
		UpdateTransactions(ctx context.Context, id string, txs []core.Transaction) error
		UpdateMappings(ctx context.Context, id string, m core.StoreMapping) error
		Delete(ctx context.Context, id string) error
	}

	// JobStore persists pending import jobs for the async upload path.
	JobStore interface {
		EnqueueJob(ctx context.Context, job ImportJob) error
		GetJob(ctx context.Context, id string) (ImportJob, error)
		MarkJob(ctx context.Context, id string, status JobStatus, errMsg string) error
	}

	// Store is the full backend surface the service layer depends on.
	Store interface {
		Reader
		Writer
		JobStore
	}
)
